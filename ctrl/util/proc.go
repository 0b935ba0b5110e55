package util

import (
	"fmt"
	"log"
	"os"
	"os/exec"
)

type void struct{}

type Processes struct {
	Processes    []*os.Process
	DoneChannels []<-chan void
}

// Launch starts a helper program with its output interleaved into ours, each line prefixed by its title.
func (p *Processes) Launch(title string, name string, args ...string) (wait func()) {
	cmd := exec.Command(name, args...)
	prefix := fmt.Sprintf("[%s] ", title)
	cmd.Stdout = newPrefixWriter(os.Stdout, prefix)
	cmd.Stderr = newPrefixWriter(os.Stderr, prefix)
	fmt.Printf("Running: %s with %v\n", cmd.Path, cmd.Args)
	done := make(chan void)
	if err := cmd.Start(); err != nil {
		log.Printf("Error launching command %q: %v", title, err)
		close(done)
		return func() {}
	}
	p.Processes = append(p.Processes, cmd.Process)
	p.DoneChannels = append(p.DoneChannels, done)
	go func() {
		defer close(done)
		if err := cmd.Wait(); err != nil {
			log.Printf("Error on command %q: %v", title, err)
		}
	}()
	return func() {
		<-done
	}
}

func (p *Processes) Interrupt() {
	for _, proc := range p.Processes {
		if err := proc.Signal(os.Interrupt); err != nil {
			log.Printf("Error when interrupting: %v", err)
		}
	}
	p.Processes = nil
}

func (p *Processes) WaitAll() {
	for _, donech := range p.DoneChannels {
		<-donech
	}
}
