package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-sif/disttable/datasource"
	"github.com/hashicorp/go-multierror"
)

// DataSource is a set of files containing the points of one partition
type DataSource struct {
	glob   string
	parser datasource.Parser
}

// CreateSource is a factory for DataSources
func CreateSource(glob string, parser datasource.Parser) *DataSource {
	return &DataSource{glob: glob, parser: parser}
}

// Files returns the files this DataSource will read, in the order they are read
func (fs *DataSource) Files() ([]string, error) {
	matches, err := filepath.Glob(fs.glob)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %s produced 0 files", fs.glob)
	}
	sort.Strings(matches)
	return matches, nil
}

// Load parses every matching file
func (fs *DataSource) Load() (int, []float64, error) {
	files, err := fs.Files()
	if err != nil {
		return 0, nil, err
	}
	var acc datasource.Accumulator
	for _, path := range files {
		numAttributes, values, err := fs.loadFile(path)
		if err != nil {
			return 0, nil, err
		}
		if err := acc.Append(path, numAttributes, values); err != nil {
			return 0, nil, err
		}
	}
	numAttributes, values := acc.Result()
	return numAttributes, values, nil
}

func (fs *DataSource) loadFile(path string) (numAttributes int, values []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("couldn't close file %s: %w", path, cerr)).ErrorOrNil()
		}
	}()
	numAttributes, values, err = fs.parser.Parse(f)
	if err != nil {
		return 0, nil, fmt.Errorf("Unable to parse %s: %w", path, err)
	}
	return numAttributes, values, nil
}

// String returns a string representation of this DataSource
func (fs *DataSource) String() string {
	return fmt.Sprintf("%s files %s", fs.parser.Name(), fs.glob)
}
