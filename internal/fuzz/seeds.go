package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const maxSeedBytes = 64 << 10

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	f.Add([]byte{})
	f.Add([]byte(`{"targets":[{"id":"s","name":"Stage","isStage":true}]}`))
	f.Add([]byte(`{"targets":[{"id":"s","name":"Stage","isStage":true},` +
		`{"id":"a","name":"A","blocks":{"f":{"opcode":"event_whenflagclicked","topLevel":true,"next":"l"},` +
		`"l":{"opcode":"control_forever","parent":"f","inputs":{"SUBSTACK":{"block":"m"}}},` +
		`"m":{"opcode":"motion_turnright","parent":"l","inputs":{"DEGREES":{"block":"n","shadow":"n"}}},` +
		`"n":{"opcode":"math_number","parent":"m","shadow":true,"fields":{"NUM":{"value":15}}}}}]}`))
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata", "projects")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
