package core

import (
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// The curated subset of the scout runtime shipped inside the bootstrap
// package: just enough for the launcher's first start, before the full
// runtime is installed.

var bootstrapRuntimeAmd64Bin = []string{
	"steam-runtime-check-requirements",   // run by steam.sh
	"steam-runtime-identify-library-abi", // run by setup.sh
	"steam-runtime-launch-client",        // run by s-r-check-requirements
	"srt-logger",                         // (symlink) run by steam.sh
}

var bootstrapRuntimeAmd64Sonames = []string{
	"libcap.so.2",         // dependency of srt-bwrap
	"libelf.so.1",         // dependency of s-r-id-lib-abi
	"libffi.so.6",         // dependency of GObject
	"libgio-2.0.so.0",
	"libglib-2.0.so.0",
	"libgmodule-2.0.so.0", // dependency of Gio
	"libgobject-2.0.so.0",
	"libpcre.so.3",        // dependency of GLib until #112
	"libselinux.so.1",     // dependency of Gio until #112
	"libz.so.1",           // dependency of Gio
}

var bootstrapRuntimeAmd64Patterns = []string{
	"libelf-*.so",
}

var bootstrapRuntimeI386Sonames = []string{
	"libX11-xcb.so.1",
	"libX11.so.6",
	"libXau.so.6",
	"libXdamage.so.1",
	"libXdmcp.so.6",
	"libXext.so.6",
	"libXfixes.so.3",
	"libXxf86vm.so.1",
	"libcom_err.so.2",
	"libcurl-gnutls.so.4",
	"libexpat.so.1",
	"libffi.so.6",
	"libgcc_s.so.1",
	"libgcrypt.so.11",
	"libgmp.so.10",
	"libgnutls.so.30",
	"libgssapi_krb5.so.2",
	"libhogweed.so.4",
	"libidn.so.11",
	"libk5crypto.so.3",
	"libkeyutils.so.1",
	"libkrb5.so.3",
	"libkrb5support.so.0",
	"libnettle.so.6",
	"libp11-kit.so.0",
	"librtmp.so.0",
	"libstdc++.so.6",
	"libtasn1.so.6",
	"libtinfo.so.5",
	"libxcb-dri2.so.0",
	"libxcb-dri3.so.0",
	"libxcb-glx.so.0",
	"libxcb-present.so.0",
	"libxcb-sync.so.1",
	"libxcb.so.1",
	"libz.so.1",
}

var bootstrapRuntimeLibexecSRT = []string{
	"srt-bwrap",     // run by s-r-check-requirements
	"srt-logger",    // run by bin_steam.sh, steam.sh
	"logger-0.bash", // run by bin_steam.sh, steam.sh
}

// NewBootstrapRuntimeFilter returns the allow-list for the scout-based
// bootstrap runtime.
func NewBootstrapRuntimeFilter(logger logrus.FieldLogger) *RuntimeFilter {
	return &RuntimeFilter{
		Unconditional: []string{
			"COPYING",
			"README.txt",
			"built-using.txt",
			"common-licenses",
			"manifest.deb822.gz",
			"manifest.txt",
			"run.sh",
			"scripts",
			"setup.sh",
			"version.txt",
		},
		StripPrefix: "usr",
		Libraries: []LibraryDirRule{
			{
				Reason: "i386 lib",
				Dirs: [][]string{
					{"lib", "i386-linux-gnu"},
					{"lib", "i386-linux-gnu", "steam-runtime-tools-0"},
				},
				Sonames: bootstrapRuntimeI386Sonames,
			},
			{
				Reason: "amd64 lib",
				Dirs: [][]string{
					{"lib", "x86_64-linux-gnu"},
					{"lib", "x86_64-linux-gnu", "steam-runtime-tools-0"},
				},
				Sonames:  bootstrapRuntimeAmd64Sonames,
				Patterns: compilePatterns(bootstrapRuntimeAmd64Patterns),
			},
		},
		Binaries: []BinaryDirRule{
			{
				Reason: "amd64 bin",
				Dir:    []string{"amd64", "usr", "bin"},
				Names:  bootstrapRuntimeAmd64Bin,
			},
			{
				Reason: "pkglibexec",
				Dir:    []string{"libexec", "steam-runtime-tools-0"},
				Names:  bootstrapRuntimeLibexecSRT,
			},
		},
		Subtrees: [][]string{
			{"amd64", "lib"},
			{"amd64", "usr", "lib"},
			{"amd64", "usr", "libexec"},
			{"amd64", "usr", "share"},
		},
		logger: logger,
	}
}

func compilePatterns(patterns []string) (compiled []glob.Glob) {
	for _, pattern := range patterns {
		compiled = append(compiled, glob.MustCompile(pattern))
	}
	return compiled
}
