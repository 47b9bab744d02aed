package commands

import (
	"os"
	"runtime"
	"runtime/pprof"

	log "github.com/sirupsen/logrus"
)

func startProfiling() error {
	if cpuprofile == "" {
		return nil
	}
	f, err := os.Create(cpuprofile)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	return nil
}

func stopProfiling() {
	if cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if memprofile == "" {
		return
	}
	f, err := os.Create(memprofile)
	if err != nil {
		log.Errorf("could not create memory profile: %v", err)
		return
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Errorf("could not write memory profile: %v", err)
	}
}
