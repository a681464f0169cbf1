// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mri implements the Pittsburgh MRI (PghMRI) dataset engine: a
// self-describing multi-dimensional array store built from a textual
// key/value header plus a set of named, typed, N-dimensional binary
// chunks packed across one or more host files.
//
// A Dataset is opened or created against a base filename, which also
// names the dataset's primary host file; chunks may redirect their
// data to sibling files via the "<chunk>.file" attribute. Keys are read and written
// through GetString/SetString and friends; setting a key's value to
// the literal string "[chunk]" declares that key's name as a chunk,
// and keys of the form "<chunk>.<attribute>" reconfigure that chunk's
// datatype, dimensions, placement, and endianness. Reads and writes of
// a chunk's array data go through GetChunk*/SetChunk*, which convert
// between the chunk's on-disk element type and the caller's requested
// type with range-clamped saturation.
//
// The engine assumes single-threaded, single-process use of one open
// Dataset for the lifetime of the handle; see package errs for the
// process-wide error policy (abort/report/ignore) threaded through
// every public call.
package mri
