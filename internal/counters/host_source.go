package counters

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

const mebibyte = 1024 * 1024

var errSourceClosed = errors.New("counter source is not open")

// hostInstance is one live instance of a multi-instance object. ref is what
// the readers need to find it again (mount point, pid, cpu index...).
type hostInstance struct {
	label string
	ref   string
}

type hostCounter struct {
	name string
	kind CounterType
	open func(h *HostSource, ref string) Reader
}

type hostObject struct {
	name      string
	instances func() ([]hostInstance, error) // nil for single-instance objects
	counters  []hostCounter
}

type instanceCache struct {
	at        time.Time
	instances []hostInstance
}

// HostSource exposes a catalogue of Windows-style performance objects
// (Memory, Processor(*), PhysicalDisk(*)...) computed with gopsutil, so the
// discovery pipeline runs on hosts without a native counter API.
type HostSource struct {
	mu      sync.Mutex
	opened  bool
	objects []*hostObject
	cache   map[string]instanceCache
	ttl     time.Duration
	now     func() time.Time
}

// NewHostSource creates a host source with the default catalogue
func NewHostSource() *HostSource {
	h := &HostSource{
		cache: make(map[string]instanceCache),
		ttl:   time.Second,
		now:   time.Now,
	}
	h.objects = defaultCatalogue()
	return h
}

func (h *HostSource) Open() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Fail the same way a native bind would if the host cannot be read at all
	if _, err := mem.VirtualMemory(); err != nil {
		return &ConnectionError{Err: err}
	}
	h.opened = true
	return nil
}

func (h *HostSource) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	h.cache = make(map[string]instanceCache)
	return nil
}

func (h *HostSource) ExpandWildcard(pattern string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened {
		return nil, &ExpansionError{Pattern: pattern, Err: errSourceClosed}
	}

	p, err := ParsePath(pattern)
	if err != nil {
		return nil, &ExpansionError{Pattern: pattern, Err: err}
	}

	var out []string
	for _, obj := range h.objects {
		ok, err := globMatch(p.Object, obj.name)
		if err != nil {
			return nil, &ExpansionError{Pattern: pattern, Err: err}
		}
		if !ok {
			continue
		}

		counters, err := matchCounters(obj, p.Counter)
		if err != nil {
			return nil, &ExpansionError{Pattern: pattern, Err: err}
		}
		if len(counters) == 0 {
			continue
		}

		if obj.instances == nil {
			if p.HasInstance() {
				continue
			}
			for _, c := range counters {
				out = append(out, Path{Machine: p.Machine, Object: obj.name, Counter: c.name}.String())
			}
			continue
		}

		if !p.HasInstance() {
			continue
		}
		instances, err := h.instancesLocked(obj)
		if err != nil {
			return nil, &ExpansionError{Pattern: pattern, Err: err}
		}
		for _, inst := range instances {
			ok, err := globMatch(p.InstanceLabel(), inst.label)
			if err != nil {
				return nil, &ExpansionError{Pattern: pattern, Err: err}
			}
			if !ok {
				continue
			}
			for _, c := range counters {
				concrete := Path{Machine: p.Machine, Object: obj.name, Instance: inst.label, Counter: c.name}
				out = append(out, concrete.String())
			}
		}
	}
	return out, nil
}

func (h *HostSource) Exists(path string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened {
		return false, errSourceClosed
	}

	p, err := ParsePath(path)
	if err != nil {
		return false, err
	}
	_, _, _, err = h.lookupLocked(p)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *HostSource) Parse(path string) (Path, error) {
	return ParsePath(path)
}

func (h *HostSource) CounterType(p Path) (CounterType, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, c, _, err := h.lookupLocked(p)
	if err != nil {
		return 0, err
	}
	return c.kind, nil
}

func (h *HostSource) OpenReader(p Path) (Reader, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened {
		return nil, errSourceClosed
	}
	_, c, ref, err := h.lookupLocked(p)
	if err != nil {
		return nil, err
	}
	return c.open(h, ref), nil
}

var errNotFound = errors.New("counter not found")

func (h *HostSource) lookupLocked(p Path) (*hostObject, *hostCounter, string, error) {
	for _, obj := range h.objects {
		if !strings.EqualFold(obj.name, p.Object) {
			continue
		}
		var counter *hostCounter
		for i := range obj.counters {
			if strings.EqualFold(obj.counters[i].name, p.Counter) {
				counter = &obj.counters[i]
				break
			}
		}
		if counter == nil {
			return nil, nil, "", fmt.Errorf("%w: %s", errNotFound, p)
		}

		if obj.instances == nil {
			if p.HasInstance() {
				return nil, nil, "", fmt.Errorf("%w: %s", errNotFound, p)
			}
			return obj, counter, "", nil
		}

		instances, err := h.instancesLocked(obj)
		if err != nil {
			return nil, nil, "", err
		}
		label := p.InstanceLabel()
		for _, inst := range instances {
			if strings.EqualFold(inst.label, label) {
				return obj, counter, inst.ref, nil
			}
		}
		return nil, nil, "", fmt.Errorf("%w: %s", errNotFound, p)
	}
	return nil, nil, "", fmt.Errorf("%w: %s", errNotFound, p)
}

func (h *HostSource) instancesLocked(obj *hostObject) ([]hostInstance, error) {
	now := h.now()
	if c, ok := h.cache[obj.name]; ok && now.Sub(c.at) < h.ttl {
		return c.instances, nil
	}
	instances, err := obj.instances()
	if err != nil {
		return nil, err
	}
	h.cache[obj.name] = instanceCache{at: now, instances: instances}
	return instances, nil
}

func matchCounters(obj *hostObject, pattern string) ([]hostCounter, error) {
	var out []hostCounter
	for _, c := range obj.counters {
		ok, err := globMatch(pattern, c.name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func globMatch(pattern, name string) (bool, error) {
	if pattern == "*" {
		return true, nil
	}
	return filepath.Match(strings.ToLower(pattern), strings.ToLower(name))
}

// instanceName makes an OS name safe to embed in a counter path, the way
// PDH does for process names with parentheses.
func instanceName(s string) string {
	return strings.NewReplacer("(", "[", ")", "]", "/", "_", "\\", "_", "#", "_").Replace(s)
}

// numbered appends #n to repeated names, as PDH does for processes
func numbered(names []string, refs []string) []hostInstance {
	counts := make(map[string]int)
	out := make([]hostInstance, 0, len(names))
	for i, name := range names {
		label := name
		if n := counts[strings.ToLower(name)]; n > 0 {
			label = name + "#" + strconv.Itoa(n)
		}
		counts[strings.ToLower(name)]++
		out = append(out, hostInstance{label: label, ref: refs[i]})
	}
	return out
}

// =============================================================================
// Catalogue
// =============================================================================

func defaultCatalogue() []*hostObject {
	return []*hostObject{
		memoryObject(),
		pagingFileObject(),
		processorObject(),
		systemObject(),
		logicalDiskObject(),
		physicalDiskObject(),
		networkInterfaceObject(),
		processObject(),
	}
}

func gauge(name string, kind CounterType, read func(ref string) (float64, error)) hostCounter {
	return hostCounter{
		name: name,
		kind: kind,
		open: func(_ *HostSource, ref string) Reader {
			return ReaderFunc(func() (float64, error) { return read(ref) })
		},
	}
}

func rate(name string, kind CounterType, read func(ref string) (float64, error)) hostCounter {
	return hostCounter{
		name: name,
		kind: kind,
		open: func(h *HostSource, ref string) Reader {
			return newRateReader(func() (float64, error) { return read(ref) }, h.now)
		},
	}
}

func ratio(name string, kind CounterType, scale float64, read func(ref string) (float64, float64, error)) hostCounter {
	return hostCounter{
		name: name,
		kind: kind,
		open: func(_ *HostSource, ref string) Reader {
			return newRatioReader(scale, func() (float64, float64, error) { return read(ref) })
		},
	}
}

func memoryObject() *hostObject {
	vm := func(pick func(*mem.VirtualMemoryStat) float64) func(string) (float64, error) {
		return func(string) (float64, error) {
			v, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return pick(v), nil
		}
	}
	return &hostObject{
		name: "Memory",
		counters: []hostCounter{
			gauge("Available MBytes", TypeNumberOfItems64, vm(func(v *mem.VirtualMemoryStat) float64 {
				return float64(v.Available / mebibyte)
			})),
			gauge("Available Bytes", TypeNumberOfItems64, vm(func(v *mem.VirtualMemoryStat) float64 {
				return float64(v.Available)
			})),
			gauge("Committed Bytes", TypeNumberOfItems64, vm(func(v *mem.VirtualMemoryStat) float64 {
				return float64(v.Used)
			})),
			gauge("% Committed Bytes In Use", TypeRawFraction, vm(func(v *mem.VirtualMemoryStat) float64 {
				return v.UsedPercent
			})),
			gauge("Cache Bytes", TypeNumberOfItems64, vm(func(v *mem.VirtualMemoryStat) float64 {
				return float64(v.Cached)
			})),
		},
	}
}

func pagingFileObject() *hostObject {
	return &hostObject{
		name: "Paging File",
		instances: func() ([]hostInstance, error) {
			return []hostInstance{{label: "_Total"}}, nil
		},
		counters: []hostCounter{
			gauge("% Usage", TypeRawFraction, func(string) (float64, error) {
				s, err := mem.SwapMemory()
				if err != nil {
					return 0, err
				}
				return s.UsedPercent, nil
			}),
		},
	}
}

func cpuTimes(ref string) (cpu.TimesStat, error) {
	if ref == "" {
		times, err := cpu.Times(false)
		if err != nil {
			return cpu.TimesStat{}, err
		}
		if len(times) == 0 {
			return cpu.TimesStat{}, errors.New("no cpu times reported")
		}
		return times[0], nil
	}
	idx, err := strconv.Atoi(ref)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	times, err := cpu.Times(true)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if idx >= len(times) {
		return cpu.TimesStat{}, fmt.Errorf("cpu %d is gone", idx)
	}
	return times[idx], nil
}

func cpuTotal(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
}

func processorObject() *hostObject {
	part := func(pick func(cpu.TimesStat) float64) func(string) (float64, float64, error) {
		return func(ref string) (float64, float64, error) {
			t, err := cpuTimes(ref)
			if err != nil {
				return 0, 0, err
			}
			return pick(t), cpuTotal(t), nil
		}
	}
	return &hostObject{
		name: "Processor",
		instances: func() ([]hostInstance, error) {
			n, err := cpu.Counts(true)
			if err != nil {
				return nil, err
			}
			out := make([]hostInstance, 0, n+1)
			for i := 0; i < n; i++ {
				out = append(out, hostInstance{label: strconv.Itoa(i), ref: strconv.Itoa(i)})
			}
			return append(out, hostInstance{label: "_Total"}), nil
		},
		counters: []hostCounter{
			ratio("% Processor Time", TypeTimer100NsInverse, 100, part(func(t cpu.TimesStat) float64 {
				return cpuTotal(t) - t.Idle - t.Iowait
			})),
			ratio("% User Time", TypeTimer100Ns, 100, part(func(t cpu.TimesStat) float64 { return t.User })),
			ratio("% Privileged Time", TypeTimer100Ns, 100, part(func(t cpu.TimesStat) float64 { return t.System })),
			ratio("% Idle Time", TypeTimer100Ns, 100, part(func(t cpu.TimesStat) float64 { return t.Idle })),
		},
	}
}

func systemObject() *hostObject {
	return &hostObject{
		name: "System",
		counters: []hostCounter{
			gauge("Processes", TypeNumberOfItems32, func(string) (float64, error) {
				pids, err := process.Pids()
				if err != nil {
					return 0, err
				}
				return float64(len(pids)), nil
			}),
			gauge("System Up Time", TypeElapsedTime, func(string) (float64, error) {
				up, err := host.Uptime()
				if err != nil {
					return 0, err
				}
				return float64(up), nil
			}),
		},
	}
}

func logicalDiskObject() *hostObject {
	usage := func(pick func(*disk.UsageStat) float64) func(string) (float64, error) {
		return func(mount string) (float64, error) {
			u, err := disk.Usage(mount)
			if err != nil {
				return 0, err
			}
			return pick(u), nil
		}
	}
	return &hostObject{
		name: "LogicalDisk",
		instances: func() ([]hostInstance, error) {
			parts, err := disk.Partitions(false)
			if err != nil {
				return nil, err
			}
			seen := make(map[string]bool)
			var out []hostInstance
			for _, p := range parts {
				label := instanceName(filepath.Base(p.Device))
				if label == "" || seen[label] {
					continue
				}
				seen[label] = true
				out = append(out, hostInstance{label: label, ref: p.Mountpoint})
			}
			return out, nil
		},
		counters: []hostCounter{
			gauge("% Free Space", TypeRawFraction, usage(func(u *disk.UsageStat) float64 {
				return 100 - u.UsedPercent
			})),
			gauge("Free Megabytes", TypeNumberOfItems32, usage(func(u *disk.UsageStat) float64 {
				return float64(u.Free / mebibyte)
			})),
		},
	}
}

func diskIO(name string) (disk.IOCountersStat, error) {
	stats, err := disk.IOCounters(name)
	if err != nil {
		return disk.IOCountersStat{}, err
	}
	s, ok := stats[name]
	if !ok {
		return disk.IOCountersStat{}, fmt.Errorf("disk %s is gone", name)
	}
	return s, nil
}

func physicalDiskObject() *hostObject {
	raw := func(pick func(disk.IOCountersStat) float64) func(string) (float64, error) {
		return func(name string) (float64, error) {
			s, err := diskIO(name)
			if err != nil {
				return 0, err
			}
			return pick(s), nil
		}
	}
	// times are reported in milliseconds, the counter is in seconds
	perOp := func(pickTime, pickCount func(disk.IOCountersStat) float64) func(string) (float64, float64, error) {
		return func(name string) (float64, float64, error) {
			s, err := diskIO(name)
			if err != nil {
				return 0, 0, err
			}
			return pickTime(s), pickCount(s), nil
		}
	}
	readCount := func(s disk.IOCountersStat) float64 { return float64(s.ReadCount) }
	writeCount := func(s disk.IOCountersStat) float64 { return float64(s.WriteCount) }

	return &hostObject{
		name: "PhysicalDisk",
		instances: func() ([]hostInstance, error) {
			stats, err := disk.IOCounters()
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(stats))
			for name := range stats {
				names = append(names, name)
			}
			sort.Strings(names)
			out := make([]hostInstance, 0, len(names))
			for _, name := range names {
				out = append(out, hostInstance{label: instanceName(name), ref: name})
			}
			return out, nil
		},
		counters: []hostCounter{
			rate("Disk Reads/sec", TypeRateOfCountsPerSecond32, raw(readCount)),
			rate("Disk Writes/sec", TypeRateOfCountsPerSecond32, raw(writeCount)),
			ratio("Avg. Disk sec/Read", TypeAverageTimer32, 0.001, perOp(
				func(s disk.IOCountersStat) float64 { return float64(s.ReadTime) }, readCount)),
			ratio("Avg. Disk sec/Write", TypeAverageTimer32, 0.001, perOp(
				func(s disk.IOCountersStat) float64 { return float64(s.WriteTime) }, writeCount)),
			gauge("Avg. Disk sec/Read Base", TypeAverageBase, raw(readCount)),
			gauge("Avg. Disk sec/Write Base", TypeAverageBase, raw(writeCount)),
		},
	}
}

func netIO(name string) (net.IOCountersStat, error) {
	stats, err := net.IOCounters(true)
	if err != nil {
		return net.IOCountersStat{}, err
	}
	for _, s := range stats {
		if s.Name == name {
			return s, nil
		}
	}
	return net.IOCountersStat{}, fmt.Errorf("interface %s is gone", name)
}

func networkInterfaceObject() *hostObject {
	raw := func(pick func(net.IOCountersStat) float64) func(string) (float64, error) {
		return func(name string) (float64, error) {
			s, err := netIO(name)
			if err != nil {
				return 0, err
			}
			return pick(s), nil
		}
	}
	return &hostObject{
		name: "Network Interface",
		instances: func() ([]hostInstance, error) {
			stats, err := net.IOCounters(true)
			if err != nil {
				return nil, err
			}
			out := make([]hostInstance, 0, len(stats))
			for _, s := range stats {
				out = append(out, hostInstance{label: instanceName(s.Name), ref: s.Name})
			}
			return out, nil
		},
		counters: []hostCounter{
			rate("Bytes Received/sec", TypeRateOfCountsPerSecond64, raw(func(s net.IOCountersStat) float64 { return float64(s.BytesRecv) })),
			rate("Bytes Sent/sec", TypeRateOfCountsPerSecond64, raw(func(s net.IOCountersStat) float64 { return float64(s.BytesSent) })),
			rate("Packets Received/sec", TypeRateOfCountsPerSecond32, raw(func(s net.IOCountersStat) float64 { return float64(s.PacketsRecv) })),
			rate("Packets Sent/sec", TypeRateOfCountsPerSecond32, raw(func(s net.IOCountersStat) float64 { return float64(s.PacketsSent) })),
		},
	}
}

func processObject() *hostObject {
	proc := func(ref string) (*process.Process, error) {
		pid, err := strconv.ParseInt(ref, 10, 32)
		if err != nil {
			return nil, err
		}
		return process.NewProcess(int32(pid))
	}
	return &hostObject{
		name: "Process",
		instances: func() ([]hostInstance, error) {
			procs, err := process.Processes()
			if err != nil {
				return nil, err
			}
			sort.Slice(procs, func(i, j int) bool { return procs[i].Pid < procs[j].Pid })
			names := make([]string, 0, len(procs))
			refs := make([]string, 0, len(procs))
			for _, p := range procs {
				name, err := p.Name()
				if err != nil || name == "" {
					// exited between listing and naming
					continue
				}
				names = append(names, instanceName(name))
				refs = append(refs, strconv.Itoa(int(p.Pid)))
			}
			return numbered(names, refs), nil
		},
		counters: []hostCounter{
			gauge("Working Set", TypeNumberOfItems64, func(ref string) (float64, error) {
				p, err := proc(ref)
				if err != nil {
					return 0, err
				}
				m, err := p.MemoryInfo()
				if err != nil {
					return 0, err
				}
				return float64(m.RSS), nil
			}),
			gauge("Thread Count", TypeNumberOfItems32, func(ref string) (float64, error) {
				p, err := proc(ref)
				if err != nil {
					return 0, err
				}
				n, err := p.NumThreads()
				if err != nil {
					return 0, err
				}
				return float64(n), nil
			}),
			gauge("Elapsed Time", TypeElapsedTime, func(ref string) (float64, error) {
				p, err := proc(ref)
				if err != nil {
					return 0, err
				}
				created, err := p.CreateTime()
				if err != nil {
					return 0, err
				}
				return time.Since(time.UnixMilli(created)).Seconds(), nil
			}),
		},
	}
}
