// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mrifsck structurally validates one or more PghMRI datasets
// concurrently: each dataset is opened read-only, every declared
// chunk's raw bytes are read once, and any failure to open the dataset
// or read a chunk is reported against that dataset's path. Datasets are independent of each other,
// so the errgroup fan-out here never shares a *mri.Dataset across
// goroutines -- each goroutine owns its own handle end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/pghmri/mri"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	flag.Parse()
	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mrifsck <dataset-path>...")
		os.Exit(2)
	}

	g, _ := errgroup.WithContext(context.Background())
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := checkDataset(p); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	fmt.Printf("%d dataset(s) OK\n", len(paths))
}

func checkDataset(path string) error {
	ds, err := mri.Open(path, mri.ModeRead)
	if err != nil {
		return err
	}
	defer ds.Close()

	for _, key := range ds.IterateKeys() {
		val, err := ds.GetString(key)
		if err != nil {
			return err
		}
		if val != "[chunk]" {
			continue
		}
		ch, ok := ds.Chunk(key)
		if !ok {
			continue
		}
		if _, err := ds.GetChunkRaw(key, ch.Size(), 0); err != nil {
			return fmt.Errorf("chunk %q: %w", key, err)
		}
	}
	return nil
}
