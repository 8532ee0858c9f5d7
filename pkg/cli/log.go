// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yeetrun/mt/pkg/fileutil"
)

// newLogger returns a logger writing to w, teed to a rotating file when path
// is set. The returned closer releases the file.
func newLogger(w io.Writer, path string) (*log.Logger, io.Closer, error) {
	if path == "" {
		return log.New(w, "", log.LstdFlags), nopCloser{}, nil
	}
	path, err := fileutil.ExpandHome(path)
	if err != nil {
		return nil, nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    16, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(io.MultiWriter(w, lj), "", log.LstdFlags), lj, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
