package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/protocol"
)

const maxFrameSize = 4 * 1024 * 1024

func main() {
	var (
		addr     = flag.String("addr", "localhost:9999", "relay address")
		name     = flag.String("name", "", "username to log in with")
		caFile   = flag.String("ca", "", "path to the relay certificate to trust")
		insecure = flag.Bool("insecure", false, "skip certificate verification")
		logLevel = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *name == "" {
		log.Fatal("a username is required: -name <username>")
	}

	logger := logging.New(logging.Config{
		Level:  *logLevel,
		Format: "text",
	})

	tlsConfig := &tls.Config{
		InsecureSkipVerify: *insecure,
		MinVersion:         tls.VersionTLS12,
	}
	if *caFile != "" {
		pem, err := os.ReadFile(*caFile)
		if err != nil {
			log.Fatalf("failed to read CA file: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatal("no certificates found in CA file")
		}
		tlsConfig.RootCAs = pool
	}

	conn, err := tls.Dial("tcp", *addr, tlsConfig)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	logger.Info("connected", "addr", *addr)

	if err := sendFrame(conn, domain.NewLoginFrame(*name)); err != nil {
		log.Fatalf("login failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		receiveLoop(conn, logger)
	}()

	go inputLoop(conn, logger)

	<-done
	fmt.Println("disconnected from relay")
}

func sendFrame(conn *tls.Conn, frame *domain.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

func receiveLoop(conn *tls.Conn, logger *logging.Logger) {
	reader := protocol.NewLineReader(conn, maxFrameSize)

	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				logger.Warn("skipping malformed frame", "error", err)
				continue
			}
			return
		}

		switch frame.Type {
		case domain.FrameTypeChat:
			fmt.Printf("%s: %s\n", frame.Sender, frame.Message)

		case domain.FrameTypeUserList:
			fmt.Printf("* online: %s\n", strings.Join(frame.Users, ", "))

		case domain.FrameTypeFile:
			path, err := saveFile(frame.Filename, frame.FileData)
			if err != nil {
				logger.Error("failed to save incoming file", "filename", frame.Filename, "error", err)
				continue
			}
			fmt.Printf("* %s sent a file, saved to %s\n", frame.Sender, path)

		case domain.FrameTypeChatHistory:
			fmt.Printf("* history (%d messages, newest first):\n", len(frame.History))
			for _, msg := range frame.History {
				fmt.Printf("  [%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Sender, msg.Content)
			}

		default:
			logger.Debug("ignoring frame", "type", frame.Type)
		}
	}
}

func inputLoop(conn *tls.Conn, logger *logging.Logger) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			conn.Close()
			return

		case line == "/history":
			if err := sendFrame(conn, domain.NewHistoryRequestFrame()); err != nil {
				logger.Error("failed to request history", "error", err)
				return
			}

		case strings.HasPrefix(line, "/file "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("failed to read file", "path", path, "error", err)
				continue
			}
			frame := &domain.Frame{
				Type:     domain.FrameTypeFile,
				Filename: filepath.Base(path),
				FileData: base64.StdEncoding.EncodeToString(data),
			}
			if err := sendFrame(conn, frame); err != nil {
				logger.Error("failed to send file", "error", err)
				return
			}

		default:
			if err := sendFrame(conn, &domain.Frame{Type: domain.FrameTypeChat, Message: line}); err != nil {
				logger.Error("failed to send message", "error", err)
				return
			}
		}
	}
}

func saveFile(filename, fileData string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(fileData)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll("downloads", 0o755); err != nil {
		return "", err
	}

	path := filepath.Join("downloads", filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
