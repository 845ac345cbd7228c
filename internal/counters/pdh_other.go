//go:build !windows

package counters

import "errors"

var errNoPDH = errors.New("pdh.dll is only available on windows")

// pdhSource is a placeholder on platforms without the PDH library; every
// session fails to open the way a missing data source would.
type pdhSource struct{}

func newPDHSource() Source {
	return pdhSource{}
}

func (pdhSource) Open() error { return &ConnectionError{Err: errNoPDH} }

func (pdhSource) Close() error { return nil }

func (pdhSource) ExpandWildcard(pattern string) ([]string, error) {
	return nil, &ExpansionError{Pattern: pattern, Err: errNoPDH}
}

func (pdhSource) Exists(string) (bool, error) { return false, errNoPDH }

func (pdhSource) Parse(path string) (Path, error) { return ParsePath(path) }

func (pdhSource) CounterType(Path) (CounterType, error) { return 0, errNoPDH }

func (pdhSource) OpenReader(Path) (Reader, error) { return nil, errNoPDH }
