package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"doggos/internal/config"
	"doggos/internal/journal"
	"doggos/internal/server"
)

func main() {
	// 命令行参数
	address := flag.String("addr", ":8080", "服务器监听地址")
	proto := flag.String("proto", "tcp", "传输协议: tcp / kcp / ws")
	configPath := flag.String("config", "", "JSON 配置文件，留空使用默认配置")
	journalPath := flag.String("journal", "", "权威模拟日志文件，留空不记录")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	var (
		journalFile   *os.File
		journalWriter *journal.Writer
	)
	if *journalPath != "" {
		journalFile, err = os.Create(*journalPath)
		if err != nil {
			log.Fatalf("创建日志文件失败: %v", err)
		}
		journalWriter = journal.NewWriter(journalFile)
	}

	// 创建服务器
	gameServer := server.NewGameServer(server.ServerConfig{
		Addr:    *address,
		Proto:   *proto,
		Config:  cfg,
		Tickets: server.NewTicketIssuer(""),
		Journal: journalWriter,
	})

	// 启动服务器（在新的 goroutine 中）
	go func() {
		if err := gameServer.Start(); err != nil {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	clockCfg := cfg.Tick.Clock()
	log.Println("========================================")
	log.Println("  Doggos 权威服务器")
	log.Println("========================================")
	log.Printf("监听地址: %s (%s)", *address, *proto)
	log.Printf("最大玩家数: %d", cfg.Netcode.MaxPlayers)
	log.Printf("tick 间隔: %v [%v, %v]", clockCfg.Nominal, clockCfg.MinInterval, clockCfg.MaxInterval)
	log.Printf("输入队列: %d，旁观广播: %.0f Hz", cfg.Netcode.QueueCapacity, cfg.Netcode.SpectatorRateHz)
	if *journalPath != "" {
		log.Printf("模拟日志: %s", *journalPath)
	}
	log.Println("========================================")
	log.Println("服务器正在运行...")
	log.Println("按 Ctrl+C 停止服务器")

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("\n正在关闭服务器...")
	gameServer.Shutdown()

	if journalFile != nil {
		log.Printf("模拟日志共 %d 条记录", journalWriter.Count())
		if err := journalFile.Close(); err != nil {
			log.Printf("关闭日志文件失败: %v", err)
		}
	}

	log.Println("服务器已关闭，再见！")
}
