package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filegate/framegrab/internal/still"
	"github.com/filegate/framegrab/internal/webdav"
)

const (
	passwordLength = 12
	passwordChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ServeCmd handles the serve subcommand
type ServeCmd struct {
	Port int    `help:"Port to listen on, from config when zero" short:"p"`
	User string `help:"Username for Basic Auth, from config when empty" short:"u"`
	Pass string `help:"Password for Basic Auth (auto-generated if not provided)"`
}

func (cmd *ServeCmd) Run(app *App) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	port := cmd.Port
	if port == 0 {
		port = app.Config.Serve.Port
	}
	user := cmd.User
	if user == "" {
		user = app.Config.Serve.User
	}
	password := cmd.Pass
	if password == "" {
		password = app.Config.Serve.Pass
	}
	if password == "" {
		password, err = generatePassword(passwordLength)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	}

	format, err := still.ParseFormat(app.Config.Extract.Ext)
	if err != nil {
		return err
	}

	logger := app.Logger.WithNames("webdav")
	srv, err := webdav.New(webdav.Config{
		Root:      cwd,
		Username:  user,
		Password:  password,
		Extractor: app.Extractor,
		Defaults:  app.Config.Request(),
		Format:    format,
		Logger:    &logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create WebDAV server: %w", err)
	}

	return runServer(srv, cwd, port, user, password)
}

func runServer(srv *webdav.Server, cwd string, port int, username, password string) error {
	addr := fmt.Sprintf(":%d", port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ips := getLocalIPs()

	fmt.Println("Starting framegrab WebDAV server...")
	fmt.Println()
	fmt.Printf("Serving: %s\n", cwd)
	fmt.Println()
	fmt.Printf("Username: %s\n", username)
	fmt.Printf("Password: %s\n", password)
	fmt.Println()
	fmt.Println("Access URLs:")
	for _, ip := range ips {
		fmt.Printf("  http://%s:%d\n", ip, port)
	}
	fmt.Printf("  http://localhost:%d\n", port)
	fmt.Println()
	fmt.Printf("Frame previews: GET any video with ?%s[&offset=50&max_size=320]\n", webdav.FrameParam)
	fmt.Println("Press Ctrl+C to stop")

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// generatePassword creates a random password
func generatePassword(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordChars))))
		if err != nil {
			return "", err
		}
		result[i] = passwordChars[num.Int64()]
	}
	return string(result), nil
}

// getLocalIPs returns all non-loopback IPv4 addresses
func getLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
				ips = append(ips, ip.String())
			}
		}
	}

	return ips
}
