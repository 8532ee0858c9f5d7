// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress handles the Content-Encoding of agent responses.
//
// The client side advertises AcceptEncoding and unwraps the response with
// DecompressResponse:
//
//	req.Header.Set("Accept-Encoding", compress.AcceptEncoding)
//	resp, err := client.Do(req)
//	...
//	if err := compress.DecompressResponse(resp); err != nil {
//	    // handle error
//	}
//	// resp.Body now yields the identity encoding.
//
// The server side, used by the demo agent and test agents, negotiates with
// SelectEncoding and writes through a ResponseWriter. A ResponseWriter can be
// flushed between multipart sections so a streamed response stays live:
//
//	cw, err := compress.NewResponseWriter(w, compress.SelectEncoding(r.Header.Get("Accept-Encoding")))
//	...
//	defer cw.Close()
//	cw.Write(section)
//	cw.Flush()
//
// Preference order when quality values are equal: zstd > gzip > deflate.
package compress
