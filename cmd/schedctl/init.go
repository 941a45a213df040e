package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/loykin/schedctl/pkg/template"
)

func runInit(out io.Writer, f InitFlags) error {
	b, err := template.NewGenerator().GenerateTOML(template.TemplateType(f.Type), f.Name)
	if err != nil {
		return err
	}
	if f.Output == "" {
		_, err = out.Write(b)
		return err
	}
	if _, err := os.Stat(f.Output); err == nil && !f.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", f.Output)
	}
	if err := os.MkdirAll(filepath.Dir(f.Output), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(f.Output, b, 0o640); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "wrote %s\n", f.Output)
	return nil
}
