package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"snappdf/internal/chat"
	"snappdf/internal/session"
)

// typeDelay paces the answer printout, one rune at a time, like the web
// client's typing effect. Piped output gets the text in one write.
const typeDelay = 12 * time.Millisecond

// cmdChat runs the interactive loop for one document. A background refresher
// keeps the credential alive for long conversations; if renewal ever fails
// the loop ends with a login hint instead of surfacing opaque 401s.
func (a *app) cmdChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	fileID := fs.String("file", "", "document id (see: snappdf files)")
	textPath := fs.String("text", "", "optional text file with the document contents")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	if *fileID == "" {
		return fmt.Errorf("-file is required")
	}

	list, err := a.files.List(ctx)
	if err != nil {
		return err
	}
	var title string
	for _, f := range list {
		if f.ID == *fileID {
			title = f.Title
			break
		}
	}
	if title == "" {
		return fmt.Errorf("no document with id %s", *fileID)
	}

	var pdfText string
	if *textPath != "" {
		data, err := os.ReadFile(*textPath)
		if err != nil {
			return err
		}
		pdfText = string(data)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	expired := make(chan struct{}, 1)
	refresher := session.NewRefresher(session.RefresherOptions{
		Renew:    a.account.RefreshToken,
		Interval: a.cfg.RefreshInterval,
		Logger:   &a.logger,
		OnExpire: func() {
			a.sessions.Clear()
			select {
			case expired <- struct{}{}:
			default:
			}
		},
	})
	go func() { _ = refresher.Run(ctx) }()

	fmt.Printf("chatting with %q - type a question, or :history :delete <id> :export :quit\n", title)
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-expired:
			return fmt.Errorf("session expired, please login again")
		default:
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			done, err := a.chatCommand(ctx, line, *fileID, title)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			if done {
				refresher.Supersede()
				return nil
			}
			continue
		}

		msg, err := a.chat.Ask(ctx, chat.Question{
			UserQuestion: line,
			PDFText:      pdfText,
			FileID:       *fileID,
			FileTitle:    title,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		typeOut(msg.Answer)
	}
}

// chatCommand handles the colon-prefixed REPL commands. It returns true when
// the loop should exit.
func (a *app) chatCommand(ctx context.Context, line, fileID, title string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true, nil

	case ":history":
		history, err := a.chat.History(ctx, fileID)
		if err != nil {
			return false, err
		}
		if len(history) == 0 {
			fmt.Println("no messages yet")
			return false, nil
		}
		for _, m := range history {
			fmt.Printf("[%s] Q: %s\n    A: %s\n", m.ID, m.Question, m.Answer)
		}
		return false, nil

	case ":delete":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: :delete <chat-id>")
		}
		if err := a.chat.Delete(ctx, fields[1]); err != nil {
			return false, err
		}
		fmt.Println("deleted", fields[1])
		return false, nil

	case ":export":
		history, err := a.chat.History(ctx, fileID)
		if err != nil {
			return false, err
		}
		out := safeFilename(title) + ".txt"
		f, err := os.Create(out)
		if err != nil {
			return false, err
		}
		defer f.Close()
		if err := chat.WriteTranscript(f, history); err != nil {
			return false, err
		}
		fmt.Println("wrote", out)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s", fields[0])
}

func typeOut(text string) {
	fi, err := os.Stdout.Stat()
	interactive := err == nil && (fi.Mode()&os.ModeCharDevice) != 0
	if !interactive {
		fmt.Println(text)
		return
	}
	for _, r := range text {
		fmt.Print(string(r))
		time.Sleep(typeDelay)
	}
	fmt.Println()
}
