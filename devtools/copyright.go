// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build ignore

// copyright.go adds the copyright header to Go files that miss it.

package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const tmpl = `// © %d Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

`

func skipDir(name string) bool {
	return name == "testdata" || name != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, "."))
}

func main() {
	if err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if bytes.HasPrefix(content, []byte("// ©")) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		fmt.Fprintf(&buf, tmpl, info.ModTime().Year())
		buf.Write(content)
		log.Printf("adding copyright header to %s", path)
		return os.WriteFile(path, buf.Bytes(), info.Mode().Perm())
	}); err != nil {
		log.Fatal(err)
	}
}
