package main

import (
	"log"
	"net/http"

	"labxtract/internal/api"
	"labxtract/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("labxtract api listening on %s queue=%s default_variant=%s max_upload_mb=%d", cfg.APIAddr, cfg.TemporalTaskQueue, cfg.DefaultVariant, cfg.MaxUploadMB)
	err := http.ListenAndServe(cfg.APIAddr, h.Routes())
	// log.Fatal skips deferred calls, so release the pool and client first.
	h.Close()
	if err != nil {
		log.Fatal(err)
	}
}
