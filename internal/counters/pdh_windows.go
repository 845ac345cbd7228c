//go:build windows

package counters

import (
	"errors"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PDH status codes
const (
	pdhCstatusValidData   = 0x00000000
	pdhCstatusNewData     = 0x00000001
	pdhMoreData           = 0x800007D2
	pdhCstatusNoInstance  = 0x800007D1
	pdhNoData             = 0x800007D5
	pdhCstatusNoObject    = 0xC0000BB8
	pdhCstatusNoCounter   = 0xC0000BB9
	pdhInvalidData        = 0xC0000BC6
	pdhCalcNegativeDenom  = 0x800007D6
	pdhCalcNegativeValue  = 0x800007D8
	pdhFmtDouble          = 0x00000200
	pdhFmtNoCap100        = 0x00008000
	pdhCounterInfoTypeOff = 4 // dwType follows dwLength in PDH_COUNTER_INFO
)

var (
	modpdh = windows.NewLazySystemDLL("pdh.dll")

	procPdhBindInputDataSourceW     = modpdh.NewProc("PdhBindInputDataSourceW")
	procPdhCloseLog                 = modpdh.NewProc("PdhCloseLog")
	procPdhExpandWildCardPathHW     = modpdh.NewProc("PdhExpandWildCardPathHW")
	procPdhValidatePathExW          = modpdh.NewProc("PdhValidatePathExW")
	procPdhParseCounterPathW        = modpdh.NewProc("PdhParseCounterPathW")
	procPdhOpenQueryW               = modpdh.NewProc("PdhOpenQueryW")
	procPdhAddEnglishCounterW       = modpdh.NewProc("PdhAddEnglishCounterW")
	procPdhCollectQueryData         = modpdh.NewProc("PdhCollectQueryData")
	procPdhGetFormattedCounterValue = modpdh.NewProc("PdhGetFormattedCounterValue")
	procPdhGetCounterInfoW          = modpdh.NewProc("PdhGetCounterInfoW")
	procPdhCloseQuery               = modpdh.NewProc("PdhCloseQuery")
)

// pdhCounterPathElements mirrors PDH_COUNTER_PATH_ELEMENTS_W
type pdhCounterPathElements struct {
	MachineName    *uint16
	ObjectName     *uint16
	InstanceName   *uint16
	ParentInstance *uint16
	InstanceIndex  uint32
	CounterName    *uint16
}

// pdhFmtCounterValueDouble mirrors PDH_FMT_COUNTERVALUE with the double arm
type pdhFmtCounterValueDouble struct {
	CStatus     uint32
	_           uint32
	DoubleValue float64
}

func isNotFound(status uint32) bool {
	return status == pdhCstatusNoObject || status == pdhCstatusNoCounter || status == pdhCstatusNoInstance
}

// pdhSource talks to the PDH real-time data source. The bound handle is the
// only scarce resource; every call on it is serialized by mu.
type pdhSource struct {
	mu        sync.Mutex
	handle    uintptr
	closeOnce sync.Once
}

func newPDHSource() Source {
	return &pdhSource{}
}

func (s *pdhSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := modpdh.Load(); err != nil {
		return &ConnectionError{Err: err}
	}

	var h uintptr
	// a nil log file list binds the real-time data source
	r, _, _ := procPdhBindInputDataSourceW.Call(uintptr(unsafe.Pointer(&h)), 0)
	if status := uint32(r); status != pdhCstatusValidData {
		return &ConnectionError{Code: status}
	}
	s.handle = h
	return nil
}

func (s *pdhSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handle == 0 {
			return
		}
		if r, _, _ := procPdhCloseLog.Call(s.handle, 0); uint32(r) != pdhCstatusValidData {
			err = &ConnectionError{Code: uint32(r)}
		}
		s.handle = 0
	})
	return err
}

func (s *pdhSource) ExpandWildcard(pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return nil, &ExpansionError{Pattern: pattern, Err: errSourceClosed}
	}
	patternPtr, err := windows.UTF16PtrFromString(pattern)
	if err != nil {
		return nil, &ExpansionError{Pattern: pattern, Err: err}
	}

	// First call with no buffer learns the list length in characters
	var size uint32
	r, _, _ := procPdhExpandWildCardPathHW.Call(s.handle, uintptr(unsafe.Pointer(patternPtr)), 0, uintptr(unsafe.Pointer(&size)), 0)
	status := uint32(r)
	switch {
	case isNotFound(status):
		return nil, nil
	case status == pdhCstatusValidData && size == 0:
		return nil, nil
	case status != pdhMoreData:
		return nil, &ExpansionError{Pattern: pattern, Code: status}
	}

	buf := make([]uint16, size)
	r, _, _ = procPdhExpandWildCardPathHW.Call(s.handle, uintptr(unsafe.Pointer(patternPtr)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), 0)
	if status := uint32(r); status != pdhCstatusValidData {
		return nil, &ExpansionError{Pattern: pattern, Code: status}
	}
	return splitMultiSz(buf[:size]), nil
}

// splitMultiSz splits a double-NUL terminated UTF-16 string list
func splitMultiSz(buf []uint16) []string {
	var out []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i == start {
			break
		}
		out = append(out, windows.UTF16ToString(buf[start:i]))
		start = i + 1
	}
	return out
}

func (s *pdhSource) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return false, errSourceClosed
	}
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	r, _, _ := procPdhValidatePathExW.Call(s.handle, uintptr(unsafe.Pointer(pathPtr)))
	status := uint32(r)
	switch {
	case status == pdhCstatusValidData:
		return true, nil
	case isNotFound(status):
		return false, nil
	default:
		return false, &ValidationError{Path: path, Code: status}
	}
}

func (s *pdhSource) Parse(path string) (Path, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Path{}, &ParseError{Path: path, Err: err}
	}

	var size uint32
	r, _, _ := procPdhParseCounterPathW.Call(uintptr(unsafe.Pointer(pathPtr)), 0, uintptr(unsafe.Pointer(&size)), 0)
	if status := uint32(r); status != pdhMoreData && status != pdhCstatusValidData {
		return Path{}, &ParseError{Path: path, Code: status}
	}
	if size == 0 {
		return Path{}, &ParseError{Path: path, Err: errors.New("zero-sized path elements")}
	}

	// The elements struct and the strings it points at share the buffer;
	// allocate words so the struct is pointer-aligned.
	buf := make([]uint64, (size+7)/8)
	r, _, _ = procPdhParseCounterPathW.Call(uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), 0)
	if status := uint32(r); status != pdhCstatusValidData {
		return Path{}, &ParseError{Path: path, Code: status}
	}

	el := (*pdhCounterPathElements)(unsafe.Pointer(&buf[0]))
	return Path{
		Machine:  windows.UTF16PtrToString(el.MachineName),
		Object:   windows.UTF16PtrToString(el.ObjectName),
		Instance: windows.UTF16PtrToString(el.InstanceName),
		Parent:   windows.UTF16PtrToString(el.ParentInstance),
		Index:    el.InstanceIndex,
		Counter:  windows.UTF16PtrToString(el.CounterName),
	}, nil
}

func (s *pdhSource) CounterType(p Path) (CounterType, error) {
	q, err := openPDHQuery(p)
	if err != nil {
		return 0, err
	}
	defer q.Close()
	return q.counterType()
}

func (s *pdhSource) OpenReader(p Path) (Reader, error) {
	q, err := openPDHQuery(p)
	if err != nil {
		return nil, err
	}
	// Rate counters need two collections; prime with the first one now
	procPdhCollectQueryData.Call(q.query)
	return q, nil
}

// pdhQuery is a private real-time query holding a single counter. It owns
// both handles and is the Reader handed to the registry.
type pdhQuery struct {
	mu      sync.Mutex
	path    string
	query   uintptr
	counter uintptr
}

func openPDHQuery(p Path) (*pdhQuery, error) {
	q := &pdhQuery{path: p.String()}

	r, _, _ := procPdhOpenQueryW.Call(0, 0, uintptr(unsafe.Pointer(&q.query)))
	if status := uint32(r); status != pdhCstatusValidData {
		return nil, &ValidationError{Path: q.path, Code: status}
	}

	pathPtr, err := windows.UTF16PtrFromString(q.path)
	if err != nil {
		q.Close()
		return nil, err
	}
	r, _, _ = procPdhAddEnglishCounterW.Call(q.query, uintptr(unsafe.Pointer(pathPtr)), 0, uintptr(unsafe.Pointer(&q.counter)))
	if status := uint32(r); status != pdhCstatusValidData {
		q.Close()
		return nil, &ValidationError{Path: q.path, Code: status}
	}
	return q, nil
}

func (q *pdhQuery) counterType() (CounterType, error) {
	var size uint32
	r, _, _ := procPdhGetCounterInfoW.Call(q.counter, 0, uintptr(unsafe.Pointer(&size)), 0)
	if status := uint32(r); status != pdhMoreData && status != pdhCstatusValidData {
		return 0, &ValidationError{Path: q.path, Code: status}
	}
	if size < pdhCounterInfoTypeOff+4 {
		return 0, &ValidationError{Path: q.path, Code: pdhInvalidData}
	}

	buf := make([]uint64, (size+7)/8)
	r, _, _ = procPdhGetCounterInfoW.Call(q.counter, 0, uintptr(unsafe.Pointer(&size)), uintptr(unsafe.Pointer(&buf[0])))
	if status := uint32(r); status != pdhCstatusValidData {
		return 0, &ValidationError{Path: q.path, Code: status}
	}
	dwType := *(*uint32)(unsafe.Add(unsafe.Pointer(&buf[0]), pdhCounterInfoTypeOff))
	return CounterType(dwType), nil
}

func (q *pdhQuery) Value() (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.query == 0 {
		return 0, errSourceClosed
	}
	r, _, _ := procPdhCollectQueryData.Call(q.query)
	if status := uint32(r); status != pdhCstatusValidData && status != pdhNoData {
		return 0, &ValidationError{Path: q.path, Code: status}
	}

	var value pdhFmtCounterValueDouble
	r, _, _ = procPdhGetFormattedCounterValue.Call(q.counter, pdhFmtDouble|pdhFmtNoCap100, 0, uintptr(unsafe.Pointer(&value)))
	if status := uint32(r); status != pdhCstatusValidData {
		return 0, &ValidationError{Path: q.path, Code: status}
	}
	if value.CStatus != pdhCstatusValidData && value.CStatus != pdhCstatusNewData {
		return 0, &ValidationError{Path: q.path, Code: value.CStatus}
	}
	return value.DoubleValue, nil
}

func (q *pdhQuery) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.query == 0 {
		return nil
	}
	r, _, _ := procPdhCloseQuery.Call(q.query)
	q.query, q.counter = 0, 0
	if status := uint32(r); status != pdhCstatusValidData {
		return &ValidationError{Path: q.path, Code: status}
	}
	return nil
}
