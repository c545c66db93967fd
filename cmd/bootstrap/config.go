package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	BetaUniverse     bool
	ClientDir        string
	ClientManifest   string
	ClientOverlay    string
	ClientTarballURI string
	ClientURI        string
	CredentialSpecs  multiFlag
	Destination      string
	ImagesURI        string
	RuntimeMirror    string
	RuntimeVersion   string
	Verbose          bool
}

func parseConfig(args []string) (config Config, err error) {
	flags := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	flags.BoolVar(&config.BetaUniverse,
		"beta-universe",
		false,
		"Build the beta flavor of the bootstrap package.",
	)
	flags.StringVar(&config.ClientDir,
		"client-dir",
		"",
		"Use a pre-downloaded client tree instead of downloading one.",
	)
	flags.StringVar(&config.ClientManifest,
		"client-manifest",
		"steam_client_ubuntu12",
		"Name of the client manifest to download, without the .vdf suffix.",
	)
	flags.StringVar(&config.ClientOverlay,
		"client-overlay",
		"",
		"Directory whose files take precedence over the downloaded client's.",
	)
	flags.StringVar(&config.ClientTarballURI,
		"client-tarball-uri",
		"",
		"Download the client as a single tarball from this URI instead of the CDN.",
	)
	flags.StringVar(&config.ClientURI,
		"client-uri",
		"https://steamcdn-a.akamaihd.net/client",
		"Base URI of the client CDN.",
	)
	flags.Var(&config.CredentialSpecs,
		"credential-env",
		"HOSTNAME=VARIABLE pair naming an environment variable that holds "+
			"user:password credentials for that host. May be repeated.",
	)
	flags.StringVar(&config.Destination,
		"destination",
		".",
		"Directory where the bootstrap archive and version metadata are written.",
	)
	flags.StringVar(&config.ImagesURI,
		"runtime-images-uri",
		"",
		"Base URI of the runtime snapshot archive. Defaults to the public repository.",
	)
	flags.StringVar(&config.RuntimeMirror,
		"runtime-mirror",
		"",
		"HOST:PATH of an ssh mirror to rsync runtime tarballs from instead of HTTP.",
	)
	flags.StringVar(&config.RuntimeVersion,
		"runtime-version",
		"",
		"Runtime build to embed, either a pinned version or a symbolic name like latest-steam-client-general-availability.",
	)
	flags.BoolVar(&config.Verbose,
		"verbose",
		false,
		"Log debug detail.",
	)

	flags.Usage = func() {
		output := flags.Output()
		_, _ = fmt.Fprintf(output, "Usage of %s:\n", os.Args[0])
		flags.PrintDefaults()
		_, _ = fmt.Fprintln(output)
		_, _ = fmt.Fprintln(output, "  Builds the launcher bootstrap archive and its version metadata")
		_, _ = fmt.Fprintln(output, "  from a client build and a runtime snapshot.")
	}

	err = flags.Parse(args)
	return config, err
}

// multiFlag collects repeated occurrences of a flag.
type multiFlag []string

func (this *multiFlag) String() string {
	return strings.Join(*this, ",")
}

func (this *multiFlag) Set(value string) error {
	*this = append(*this, value)
	return nil
}
