package main

import (
	"log"
	"os"

	"handychat/config"
)

var settings *config.Settings

func main() {
	settingsPath := os.Getenv("SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = "settings.yaml"
	}

	loaded, err := config.Load(settingsPath)
	if err != nil {
		log.Fatalf("[MAIN] failed to load settings from %s: %v", settingsPath, err)
	}
	settings = loaded

	if settings.Endpoint.URL == "" {
		log.Printf("[MAIN] warning: no endpoint URL configured, chat requests will fail")
	}

	if err := InitFeedbackDB(settings.Feedback.DBPath); err != nil {
		log.Printf("[MAIN] warning: feedback store unavailable: %v", err)
	}

	certFile, keyFile, found := findSSLCertificates()
	if found {
		go func() {
			log.Printf("[MAIN] starting HTTPS server on port %d", HTTPS_PORT)
			if err := StartHTTPSServer(HTTPS_PORT, certFile, keyFile); err != nil {
				log.Printf("[MAIN] HTTPS server failed: %v", err)
			}
		}()
	}

	log.Printf("[MAIN] starting HTTP server on port %d", HTTP_PORT)
	log.Fatal(StartHTTPServer(HTTP_PORT))
}
