// cmd/register-jobs/main.go
//
// register-jobs generates WhatsApp application codes for every job in a
// registry file and prints the click-to-chat links to hand to recruiters.
//
// Usage: register-jobs -registry jobs.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"screening-engine/internal/common/config"
	"screening-engine/internal/common/database"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/store"
	"screening-engine/pkg/registry"
)

func main() {
	registryPath := flag.String("registry", "jobs.json", "path to the job registry file")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		zapLog.Fatal("registry load failed", zap.Error(err), zap.String("path", *registryPath))
	}
	if len(reg.Jobs) == 0 {
		zapLog.Warn("registry contains no jobs", zap.String("path", *registryPath))
		os.Exit(0)
	}

	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer redis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := redis.Ping(ctx); err != nil {
		zapLog.Fatal("redis unreachable", zap.Error(err))
	}

	codes := store.NewCodeStore(redis.Client)

	for _, job := range reg.Jobs {
		code, err := codes.RegisterJob(ctx, job.ID)
		if err != nil {
			zapLog.Error("code registration failed",
				zap.Error(err),
				zap.String("jobId", job.ID),
			)
			continue
		}

		link := store.WhatsAppLink(cfg.Provider.WhatsAppNumber, code)
		fmt.Printf("%s\t%s\tCODE-%s\t%s\n", job.ID, job.Title, code, link)
	}
}
