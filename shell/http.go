package shell

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/steamlauncher/bootstrap/contracts"
)

// HTTPDownloader opens http(s) URIs, attaching basic-auth credentials by
// hostname. Anything that does not parse as an http(s) URI is treated as a
// local path.
type HTTPDownloader struct {
	client      *http.Client
	credentials map[string]contracts.Credential
}

func NewHTTPDownloader(client *http.Client, credentials map[string]contracts.Credential) *HTTPDownloader {
	return &HTTPDownloader{client: client, credentials: credentials}
}

func (this *HTTPDownloader) Open(uri string) (io.ReadCloser, error) {
	address, err := url.Parse(uri)
	if err != nil || (address.Scheme != "http" && address.Scheme != "https") {
		reader, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", contracts.TransportErr, err)
		}
		return reader, nil
	}
	request, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.TransportErr, err)
	}
	if credential, found := this.credentials[address.Hostname()]; found {
		request.SetBasicAuth(credential.Username, credential.Password)
	}
	response, err := this.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.TransportErr, err)
	}
	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", contracts.TransportErr, uri, response.Status)
	}
	return response.Body, nil
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   16 * time.Second,
				KeepAlive: 16 * time.Second,
			}).DialContext,
			MaxIdleConns:          32,
			IdleConnTimeout:       32 * time.Second,
			TLSHandshakeTimeout:   16 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
