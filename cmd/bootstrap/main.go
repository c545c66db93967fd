package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/contracts"
	"github.com/steamlauncher/bootstrap/core"
	"github.com/steamlauncher/bootstrap/shell"
)

func main() {
	config, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	err = run(config, logger)
	if errors.Is(err, contracts.InvocationErr) {
		logger.Error(err)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal(err)
	}
}

func run(config Config, logger *logrus.Logger) error {
	environment := shell.NewEnvironment()
	credentials, err := core.NewCredentialParser(environment).Parse(config.CredentialSpecs)
	if err != nil {
		return err
	}

	downloader := shell.NewHTTPDownloader(shell.NewHTTPClient(), credentials)
	files := shell.NewDiskFileSystem("")
	fetcher := core.NewIntegrityFetcher(downloader, files, logger)
	parser := core.NewManifestParser(core.DefaultPlatform, logger)
	extractor := core.NewFilteredExtractor(files, logger)
	client := core.NewSteamClient(
		config.ClientURI, config.ClientManifest, downloader, fetcher, parser, extractor, logger)

	runtimeArchive := core.NewRuntimeArchive("scout", config.ImagesURI, downloader, files, logger)
	if config.RuntimeMirror != "" {
		host, basePath, found := strings.Cut(config.RuntimeMirror, ":")
		if !found || host == "" || basePath == "" {
			return fmt.Errorf("%w: --runtime-mirror %q is not HOST:PATH",
				contracts.InvocationErr, config.RuntimeMirror)
		}
		runtimeArchive.UseMirror(shell.NewRsyncClient(host), basePath)
	}

	request := contracts.BuildRequest{
		ClientDir:          config.ClientDir,
		ClientOverlay:      config.ClientOverlay,
		ClientTarballURI:   config.ClientTarballURI,
		RuntimeVersion:     config.RuntimeVersion,
		Destination:        config.Destination,
		BetaUniverse:       config.BetaUniverse,
		ReferenceTimestamp: referenceTimestamp(environment, logger),
	}
	builder := core.NewBootstrapBuilder(
		request,
		client,
		runtimeArchive,
		downloader,
		extractor,
		core.NewBootstrapRuntimeFilter(logger),
		func(root string) core.PackageBuilderFileSystem { return shell.NewDiskFileSystem(root) },
		logger,
	)
	return builder.Run()
}

func referenceTimestamp(environment contracts.Environment, logger logrus.FieldLogger) int64 {
	value, set := environment.LookupEnv("SOURCE_DATE_EPOCH")
	if !set {
		return -1
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		logger.Warnf("Ignoring malformed SOURCE_DATE_EPOCH %q", value)
		return -1
	}
	return parsed
}
