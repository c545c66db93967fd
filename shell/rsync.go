package shell

import (
	"fmt"
	"os/exec"

	"github.com/steamlauncher/bootstrap/contracts"
)

// RsyncClient copies single files from an ssh host with rsync, resuming
// partial transfers.
type RsyncClient struct {
	target string
}

func NewRsyncClient(target string) *RsyncClient {
	return &RsyncClient{target: target}
}

func (this *RsyncClient) Copy(remotePath, localPath string) error {
	command := exec.Command("rsync",
		"--archive",
		"--partial",
		this.target+":"+remotePath,
		localPath,
	)
	output, err := command.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: rsync %s:%s: %s (%s)",
			contracts.TransportErr, this.target, remotePath, err, output)
	}
	return nil
}
