package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultSchemaFiles are tried in order when no schema is given.
var defaultSchemaFiles = []string{"apischema.yaml", "apischema.yml", "apischema.json"}

// collectFiles expands directories into the schema files they contain.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSchemaFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isSchemaFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return !isConfigFile(path)
	}
	return false
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".apischema") || strings.HasPrefix(base, "apischema.config")
}

// schemaArgs returns args, or the first default schema file that exists.
func schemaArgs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	for _, name := range defaultSchemaFiles {
		if _, err := os.Stat(name); err == nil {
			return []string{name}, nil
		}
	}
	return nil, fmt.Errorf("no schema file given and none of %s found", strings.Join(defaultSchemaFiles, ", "))
}
