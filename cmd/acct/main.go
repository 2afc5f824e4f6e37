package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coldstore/blockarchive/accumulator"
	"github.com/coldstore/blockarchive/spec"
	"github.com/rs/zerolog"
)

func bail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	flag.PrintDefaults()
	os.Exit(1)
}

func logger() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func main() {
	var seal bool
	var prove int

	flag.BoolVar(&seal, "seal", false, "seal the accumulator and print the checkpoint root")
	flag.IntVar(&prove, "prove", -1, "emit and self-verify an inclusion proof for the archive at the given index")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		bail(fmt.Errorf("must pass one or more archive file names, in checkpoint order"))
	}

	log := logger()
	acc := accumulator.New()

	for _, fn := range args {
		b, err := os.ReadFile(fn)
		if err != nil {
			bail(fmt.Errorf("reading archive file: %s", err))
		}
		arc := new(spec.Archive)
		if err := arc.UnmarshalSSZ(b); err != nil {
			bail(fmt.Errorf("unmarshalling archive %s: %s", fn, err))
		}
		root, err := arc.HashTreeRoot()
		if err != nil {
			bail(fmt.Errorf("computing root of %s: %s", fn, err))
		}
		index, err := acc.Append(root)
		if err != nil {
			bail(fmt.Errorf("appending root of %s: %s", fn, err))
		}
		log.Info().Str("name", fn).Uint64("index", index).Str("root", fmt.Sprintf("%x", root)).Msg("Appended archive root")
	}

	expected := acc.Root()
	count := acc.Len()
	if seal {
		ckpt, err := acc.Seal()
		if err != nil {
			bail(fmt.Errorf("sealing: %s", err))
		}
		expected = ckpt.Root
		count = ckpt.Count
		fmt.Printf("checkpoint_root: %x\n", ckpt.Root)
		fmt.Printf("checkpoint_count: %d\n", ckpt.Count)
	} else {
		fmt.Printf("accumulator_root: %x\n", expected)
		fmt.Printf("accumulator_count: %d\n", count)
	}

	if prove >= 0 {
		proof, err := acc.ProveInclusion(uint64(prove))
		if err != nil {
			bail(fmt.Errorf("proving index %d: %s", prove, err))
		}
		entries := acc.Entries()
		ok, err := accumulator.VerifyInclusion(entries[prove].Root, proof.Index, proof.Count, proof.Path, expected)
		if err != nil {
			bail(fmt.Errorf("verifying proof: %s", err))
		}
		if !ok {
			bail(fmt.Errorf("proof for index %d did not verify", prove))
		}
		log.Info().Uint64("index", proof.Index).Uint64("count", proof.Count).Msg("Inclusion proof verified")
		for i, sib := range proof.Path {
			fmt.Printf("sibling[%d]: %x\n", i, sib)
		}
	}
}
