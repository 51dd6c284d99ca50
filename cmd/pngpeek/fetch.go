// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v3"
	"github.com/grailbio/base/file"
	"v.io/x/lib/vlog"
)

// openFileOrURL returns the full contents of name, which may be a local
// path, an s3:// object, or an http(s):// URL. Remote fetches are retried
// with exponential backoff on transient failure, generalizing the donor's
// retry-less http.Get: a PNG-inspection tool is more likely to be pointed at
// a flaky remote source than a batch decompression job is.
func openFileOrURL(ctx context.Context, name string) (io.Reader, error) {
	var body []byte
	op := func() error {
		b, err := fetchOnce(ctx, name)
		if err != nil {
			vlog.VI(1).Infof("fetch of %v failed, retrying: %v", name, err)
			return err
		}
		body = b
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return bytes.NewReader(body), nil
}

func fetchOnce(ctx context.Context, name string) ([]byte, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, &httpStatusError{name, resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(&httpStatusError{name, resp.StatusCode})
		}
		return ioutil.ReadAll(resp.Body)
	}

	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx)
	return ioutil.ReadAll(f.Reader(ctx))
}

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return "pngpeek: fetching " + e.url + ": unexpected http status " + http.StatusText(e.status)
}
