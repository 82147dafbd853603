// Command kstat renders a process-table accounting snapshot (the
// accnt.ProcUsage records a debug kernel build would dump to a file,
// see internal/proc.Manager.Snapshot) as a pprof profile, so the
// scheduler's own accounting data (spec.md §4.E's Accnt_t) is viewable
// with `go tool pprof` instead of being write-only. Grounded on
// biscuit/src/stats/stats.go's counter-snapshot pattern, adapted from a
// text dump to a real profile.proto consumer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/pprof/profile"

	"minikern/internal/accnt"
)

func main() {
	in := flag.String("in", "", "path to a JSON accnt.ProcUsage snapshot (required)")
	out := flag.String("out", "kstat.pprof", "output pprof profile path")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "kstat: -in is required")
		os.Exit(1)
	}

	usages, err := loadSnapshot(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kstat: %v\n", err)
		os.Exit(1)
	}

	prof := buildProfile(usages)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kstat: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := prof.Write(f); err != nil {
		fmt.Fprintf(os.Stderr, "kstat: writing profile: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("kstat: wrote %d process samples to %s\n", len(usages), *out)
}

func loadSnapshot(path string) ([]accnt.ProcUsage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var usages []accnt.ProcUsage
	if err := json.Unmarshal(raw, &usages); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return usages, nil
}

// buildProfile turns one ProcUsage per process into one pprof sample
// with two value columns (user ns, sys ns), each attributed to a
// synthetic single-frame stack named after the process so `go tool
// pprof -top` groups time by PID.
func buildProfile(usages []accnt.ProcUsage) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "sys", Unit: "nanoseconds"},
		},
		DefaultSampleType: "sys",
		PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:            1,
	}

	for i, u := range usages {
		id := uint64(i + 1)
		fn := &profile.Function{ID: id, Name: u.Name}
		loc := &profile.Location{
			ID:      id,
			Address: uint64(u.Pid),
			Line:    []profile.Line{{Function: fn, Line: 0}},
		}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{u.Usage.Userns, u.Usage.Sysns},
			Label:    map[string][]string{"pid": {fmt.Sprintf("%d", u.Pid)}},
		})
	}
	return prof
}
