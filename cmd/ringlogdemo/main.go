// Command ringlogdemo is the Go analogue of original_source/example.c: a
// fixed demo script, not a general-purpose CLI. It opens a registry backed
// by a small inline config, appends three entries to "log_a" (the last one
// in two fragments), commits each, then drains the log by peeking 8 bytes
// at a time and acknowledging.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/menhirsys/ringlog"
)

// configTemplate mirrors original_source/ring_log_config.c's compiled-in
// single-log, 200-byte-partition, zero-filler configuration, expressed as
// the YAML document LoadConfig expects. %s is the temp directory.
const configTemplate = `
dir: %s
partition_size: 200
filler_byte: 0
logs:
  - name: log_a
`

func main() {
	dir, err := os.MkdirTemp("", "ringlogdemo")
	if err != nil {
		log.Fatalf("ringlogdemo: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg, err := ringlog.LoadConfig([]byte(fmt.Sprintf(configTemplate, dir)))
	if err != nil {
		log.Fatalf("ringlogdemo: load config: %v", err)
	}

	reg := ringlog.NewRegistry(cfg)
	if err := reg.Init(); err != nil {
		log.Fatalf("ringlogdemo: init: %v", err)
	}
	defer reg.Deinit()

	mustAppend(reg, "log_a", "one")
	mustAppend(reg, "log_a", "two")

	// "three" written in two fragments, mirroring example.c's single
	// write_tail call but demonstrating the fragmented-append path the
	// demo is meant to exercise.
	if err := reg.WriteTail("log_a", []byte("thr")); err != nil {
		log.Fatalf("ringlogdemo: write_tail: %v", err)
	}
	if err := reg.WriteTail("log_a", []byte("ee")); err != nil {
		log.Fatalf("ringlogdemo: write_tail: %v", err)
	}
	if err := reg.WriteTailComplete("log_a"); err != nil {
		log.Fatalf("ringlogdemo: write_tail_complete: %v", err)
	}

	for reg.HasUnread("log_a") {
		fmt.Print("entry: ")
		var cursor int
		buf := make([]byte, 8)
		for {
			n, err := reg.ReadHead("log_a", buf, &cursor)
			if err == ringlog.ErrEmpty {
				break
			}
			if err != nil {
				log.Fatalf("ringlogdemo: read_head: %v", err)
			}
			if n == 0 {
				break
			}
			fmt.Print(string(buf[:n]))
		}
		fmt.Println()
		if err := reg.ReadHeadSuccess("log_a"); err != nil {
			log.Fatalf("ringlogdemo: read_head_success: %v", err)
		}
	}

	fmt.Println("wrote demo ring file at", filepath.Join(dir, "log_a"))
}

func mustAppend(reg *ringlog.Registry, name, payload string) {
	if err := reg.WriteTail(name, []byte(payload)); err != nil {
		log.Fatalf("ringlogdemo: write_tail: %v", err)
	}
	if err := reg.WriteTailComplete(name); err != nil {
		log.Fatalf("ringlogdemo: write_tail_complete: %v", err)
	}
}
