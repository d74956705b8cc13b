package manifest

import (
	"os"
	"path"
	"path/filepath"

	"rivet/internal/diag"
	"rivet/internal/outfs"
)

// FileName is the manifest document name.
const FileName = "server-reference-manifest.json"

// Path is the build-wide manifest location relative to the output dir.
func Path() string {
	return path.Join("server", FileName)
}

// RoutePath is the per-route manifest location relative to the output dir.
func RoutePath(route string) string {
	return "server/app" + route + "/" + FileName
}

// Write replaces the build-wide manifest under outDir and returns its path.
func Write(outDir string, m *Manifest) (string, error) {
	return write(filepath.Join(outDir, filepath.FromSlash(Path())), m, "")
}

// WriteRoute writes the route's slice of m next to its loader.
func WriteRoute(outDir, route string, m *Manifest) (string, error) {
	return write(filepath.Join(outDir, filepath.FromSlash(RoutePath(route))), ForRoute(m, route), route)
}

func write(p string, m *Manifest, route string) (string, error) {
	data, err := Encode(m)
	if err != nil {
		return "", err
	}
	if err := outfs.WriteFile(p, data, 0o644); err != nil {
		return "", diag.Wrap(diag.ManifestWrite, "", err, "failed to write %s", p).WithRoute(route)
	}
	return p, nil
}

// Read loads a manifest written by Write.
func Read(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, diag.Wrap(diag.ManifestWrite, "", err, "failed to read %s", p)
	}
	return Decode(data)
}
