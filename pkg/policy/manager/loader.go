package manager

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"mercator-hq/vigil/pkg/policy/model"
)

// Loader reads policy files into model layers.
type Loader struct {
	config *LoaderConfig
}

// NewLoader creates a new loader with the given configuration.
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Loader{config: config}
}

// LoadFile loads a single policy file. It checks file size and UTF-8
// encoding before decoding.
func (l *Loader) LoadFile(path string) (*model.Layer, error) {
	data, err := l.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.LoadBytes(data, path)
}

// ReadFile reads a policy file after checking that it is a regular file
// within the size limit.
func (l *Loader) ReadFile(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}

	if fileInfo.Size() > l.config.MaxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", fileInfo.Size(), l.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	return data, nil
}

// LoadBytes decodes a YAML or JSON policy document. sourcePath is used for
// error messages and recorded as the layer's Source.
func (l *Loader) LoadBytes(data []byte, sourcePath string) (*model.Layer, error) {
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: sourcePath, Message: "file contains invalid UTF-8 encoding"}
	}

	var doc yamlPolicy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{FilePath: sourcePath, Message: "empty policy document"}
		}
		return nil, &ParseError{FilePath: sourcePath, Message: "YAML parsing failed", Cause: err}
	}

	b := &builder{sourcePath: sourcePath}
	return b.buildLayer(&doc)
}

// PolicyName returns the logical name of a policy file: its base name
// without extension.
func PolicyName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (l *Loader) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range l.config.Extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}
