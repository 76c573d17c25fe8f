// Copyright 2025 The imgdock Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/imgdock/imgdock/pkg/api"
	"github.com/imgdock/imgdock/pkg/config"
	"github.com/imgdock/imgdock/pkg/dlog"
	"github.com/imgdock/imgdock/pkg/storage"
	"github.com/imgdock/imgdock/service/lookup"
	"github.com/imgdock/imgdock/service/transfer"
)

func main() {
	if err := config.InitConfig(); err != nil {
		dlog.Fatalf("Failed to initialize configuration: %v", err)
	}

	cfg := config.Get()

	logLevel, err := dlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		dlog.Warnf("Invalid initial log level '%s': %v. Using default.", cfg.LogLevel, err)
	}
	dlog.SetLevel(logLevel)

	dlog.Info("Connecting to services...")

	objects, err := storage.NewMinioStore(
		cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey,
		cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		dlog.Fatalf("Object storage init failed: %v", err)
	}

	cache, err := storage.NewRedisCache(cfg.RedisURL)
	if err != nil {
		dlog.Fatalf("Redis connection failed: %v", err)
	}
	dlog.Info("Redis connected")

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	records, err := storage.NewMongoStore(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		dlog.Fatalf("MongoDB connection failed: %v", err)
	}
	dlog.Info("MongoDB connected")

	transferHdr := &transfer.Handler{
		Objects: objects,
		Cache:   cache,
		Records: records,
		Cfg:     cfg,
	}

	lookupHdr, err := lookup.New(cache, records, cfg)
	if err != nil {
		dlog.Fatalf("Lookup service init failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transfer", transferHdr.Create)
	mux.HandleFunc("POST /transfer/{id}/done", transferHdr.Complete)
	mux.HandleFunc("GET /i/{id}", lookupHdr.Get)
	mux.HandleFunc("GET /health", api.Health)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: corsHandler.Handler(api.RequestLogger(mux)),
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		dlog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			dlog.Errorf("Server shutdown error: %v", err)
		}

		if err := cache.Close(); err != nil {
			dlog.Errorf("Error closing Redis connection: %v", err)
		}
		if err := records.Close(ctx); err != nil {
			dlog.Errorf("Error closing MongoDB connection: %v", err)
		}

		dlog.Info("Server shutdown complete")
		os.Exit(0)
	}()

	dlog.Infof("Server starting on :%d", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		dlog.Fatalf("Failed to start server: %v", err)
	}
}
