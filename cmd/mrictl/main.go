// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mrictl inspects and edits PghMRI datasets from the shell:
// create new ones, list or print header keys, pull chunk data, and
// copy a dataset wholesale.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pghmri/mri"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "create":
		err = runCreate(args[1:])
	case "header":
		err = runHeader(args[1:])
	case "ls":
		err = runLs(args[1:])
	case "get":
		err = runGet(args[1:])
	case "copy":
		err = runCopy(args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mrictl <create|header|ls|get|copy> [arguments]")
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("create: expected a dataset path")
	}
	ds, err := mri.Create(fs.Arg(0))
	if err != nil {
		return err
	}
	return ds.Close()
}

func runHeader(args []string) error {
	fs := flag.NewFlagSet("header", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("header: expected a dataset path")
	}
	ds, err := mri.Open(fs.Arg(0), mri.ModeRead)
	if err != nil {
		return err
	}
	defer ds.Close()
	for _, key := range ds.IterateKeys() {
		val, err := ds.GetString(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, val)
	}
	return nil
}

func runLs(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("ls: expected a dataset path")
	}
	ds, err := mri.Open(fs.Arg(0), mri.ModeRead)
	if err != nil {
		return err
	}
	defer ds.Close()
	for _, key := range ds.IterateKeys() {
		val, err := ds.GetString(key)
		if err == nil && val == "[chunk]" {
			ch, _ := ds.Chunk(key)
			fmt.Printf("%s\t%s\t%s\t%d bytes\n", key, ch.Datatype(), ch.Dimensions(), ch.Size())
		}
	}
	return nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("get: expected a dataset path and a chunk name")
	}
	ds, err := mri.Open(fs.Arg(0), mri.ModeRead)
	if err != nil {
		return err
	}
	defer ds.Close()
	ch, ok := ds.Chunk(fs.Arg(1))
	if !ok {
		return fmt.Errorf("get: no such chunk %q", fs.Arg(1))
	}
	raw, err := ds.GetChunkRaw(fs.Arg(1), ch.Size(), 0)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(raw)
	return err
}

func runCopy(args []string) error {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("copy: expected a source and destination dataset path")
	}
	src, err := mri.Open(fs.Arg(0), mri.ModeRead)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := mri.CopyDataset(src, fs.Arg(1))
	if err != nil {
		return err
	}
	return dst.Close()
}
