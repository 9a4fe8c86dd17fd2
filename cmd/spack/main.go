// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command spack bundles compiled SPIR-V modules into a shader pack.
// Modules keep their file names, which is what they are looked up by
// at load time.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/tinyrhi/shaderpack"
)

var (
	dir     = flag.String("dir", ".", "Directory to collect .spv modules from")
	out     = flag.String("out", "shaders.spk", "File to write the pack to")
	author  = flag.String("author", "", "Author recorded in the pack header")
	version = flag.Int64("version", 1, "Pack version recorded in the header")
)

func main() {
	flag.Parse()

	builder := shaderpack.NewBuilder(shaderpack.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})

	var count int
	err := filepath.Walk(*dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".spv" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := builder.Add(filepath.Base(path), f); err != nil {
			return err
		}
		count++
		log.WithField("module", filepath.Base(path)).Info("Added")
		return nil
	})
	if err != nil {
		log.WithError(err).Fatal("Collecting modules failed")
	}
	if count == 0 {
		log.Fatalf("no .spv modules under %s", *dir)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.WithError(err).Fatal("Pack file creation failed")
	}
	defer f.Close()

	written, err := builder.WriteTo(f)
	if err != nil {
		log.WithError(err).Fatal("Pack write failed")
	}
	log.WithFields(log.Fields{
		"modules": count,
		"bytes":   written,
		"file":    *out,
	}).Info("Pack written")
}
