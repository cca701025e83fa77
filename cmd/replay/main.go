package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"doggos/internal/config"
	"doggos/internal/journal"
)

func main() {
	configPath := flag.String("config", "", "JSON 配置文件，必须与录制时一致")
	journalPath := flag.String("journal", "", "权威模拟日志文件")
	flag.Parse()

	if *journalPath == "" {
		log.Fatal("缺少 -journal")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	f, err := os.Open(*journalPath)
	if err != nil {
		log.Fatalf("打开日志失败: %v", err)
	}
	defer f.Close()

	report, err := journal.Replay(f, journal.ReplayConfig{
		Movement: cfg.Movement,
		Body:     cfg.Body,
		Step:     cfg.Tick.Clock().Nominal.Seconds(),
	})

	var divergence *journal.DivergenceError
	switch {
	case errors.As(err, &divergence):
		log.Printf("重放分叉: %v", divergence)
		os.Exit(2)
	case err != nil:
		log.Fatalf("重放失败: %v", err)
	}

	log.Printf("重放一致: %d 条记录, %d 个角色, %d 个 tick", report.Records, report.Actors, report.Ticks)
}
