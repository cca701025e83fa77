package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doggos/internal/client"
	"doggos/internal/config"
	"doggos/pkg/ai"
)

func main() {
	// 命令行参数
	address := flag.String("addr", "127.0.0.1:8080", "服务器地址")
	proto := flag.String("proto", "tcp", "传输协议: tcp / kcp / ws")
	configPath := flag.String("config", "", "JSON 配置文件，必须与服务器一致")
	name := flag.String("name", "doggo", "名字")
	ticket := flag.String("ticket", "", "重连凭证")
	fps := flag.Int("fps", 60, "帧率")
	playful := flag.Bool("playful", false, "使用活泼的机器人")
	seed := flag.Int64("seed", 0, "机器人随机种子，0 使用当前时间")
	status := flag.Int("status", 250, "每隔多少 tick 打印状态，0 不打印")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	botConfig := &ai.ConfigCalm
	if *playful {
		botConfig = &ai.ConfigPlayful
	}
	bot := ai.NewBotWithConfig(*seed, botConfig)

	session := client.NewSession(client.SessionConfig{
		Config:      cfg,
		Source:      bot,
		StatusEvery: *status,
	})
	bot.SetLocator(session.OwnPosition)

	nc := client.NewNetworkClient(client.ClientConfig{
		Addr:   *address,
		Proto:  *proto,
		Name:   *name,
		Ticket: *ticket,
	})

	accepted, err := nc.Connect(session.HandleEnvelope)
	if err != nil {
		log.Fatalf("加入失败: %v", err)
	}
	defer nc.Close()

	session.Attach(nc, accepted)

	log.Println("========================================")
	log.Printf("  %s 已加入，角色 ID: %d", *name, accepted.ActorID)
	log.Println("========================================")
	log.Printf("重连凭证: %s", accepted.Ticket)
	log.Println("按 Ctrl+C 退出")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 连接断开时一并退出
	go func() {
		select {
		case <-nc.Done():
			log.Println("与服务器的连接已断开")
			stop()
		case <-ctx.Done():
		}
	}()

	if err := session.Run(ctx, *fps); err != nil {
		log.Printf("客户端退出: %v", err)
		os.Exit(1)
	}
	log.Println("再见！")
}
