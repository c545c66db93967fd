package core

import (
	"testing"

	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
)

func TestRuntimeMarkerFixture(t *testing.T) {
	gunit.Run(new(RuntimeMarkerFixture), t)
}

type RuntimeMarkerFixture struct {
	*gunit.Fixture
}

func (this *RuntimeMarkerFixture) TestWellFormedMarker() {
	version, ok := ParseRuntimeVersionMarker("steam-runtime_0.20210126.1")

	this.So(ok, should.BeTrue)
	this.So(version, should.Equal, "0.20210126.1")
}

func (this *RuntimeMarkerFixture) TestMalformedMarkers() {
	for _, marker := range []string{
		"",
		"steam-runtime",
		"steam-runtime_0.1_extra",
		"other-runtime_0.1",
	} {
		_, ok := ParseRuntimeVersionMarker(marker)
		this.So(ok, should.BeFalse)
	}
}

func (this *RuntimeMarkerFixture) TestVersionsTableDepotRow() {
	text := "# this file enumerates component versions\n" +
		"depot\t0.20231010.1\tofficial\n" +
		"sniper\t0.20230905.0\tbase\n"

	this.So(ParseVersionsTable(text, "sniper"), should.Equal, "0.20231010.1")
}

func (this *RuntimeMarkerFixture) TestVersionsTableSuiteRowFallback() {
	text := "sniper\t0.20230905.0\tbase\n"

	this.So(ParseVersionsTable(text, "sniper"), should.Equal, "0.20230905.0")
}

func (this *RuntimeMarkerFixture) TestVersionsTableWithoutMatchingRow() {
	this.So(ParseVersionsTable("scout\t0.1\n", "sniper"), should.Equal, "")
	this.So(ParseVersionsTable("", "sniper"), should.Equal, "")
}

func (this *RuntimeMarkerFixture) TestRuntimeTarballNames() {
	this.So(runtimeTarballName("scout", "1"), should.Equal, "steam-runtime.tar.xz")
	this.So(runtimeTarballName("sniper", "3"), should.Equal, "SteamLinuxRuntime_sniper.tar.xz")
	this.So(runtimeTarballName("steamrt5", "5"), should.Equal, "SteamLinuxRuntime_5.tar.xz")
}

func (this *RuntimeMarkerFixture) TestInnerTarballCandidates() {
	this.So(innerTarballNames("scout", "1", "steam-runtime.tar.xz"), should.Resemble,
		[]string{"ubuntu12_32/steam-runtime.tar.xz"})
	this.So(innerTarballNames("sniper", "3", "SteamLinuxRuntime_sniper.tar.xz"), should.Resemble,
		[]string{
			"ubuntu12_64/SteamLinuxRuntime_sniper.tar.xz",
			"ubuntu12_64/steam-runtime-sniper.tar.xz",
		})
	this.So(innerTarballNames("steamrt5", "5", "SteamLinuxRuntime_5.tar.xz"), should.Resemble,
		[]string{"ubuntu12_64/SteamLinuxRuntime_5.tar.xz"})
}
