package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/Neosyss/guidly-web/internal/app"
	"github.com/Neosyss/guidly-web/internal/config"
	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/logger"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("guidly", cfg.LogLevel, cfg.LogFormat)

	application := app.New(cfg, log)
	defer func() { _ = application.Close() }()

	application.AuthExpired = func() {
		fmt.Println("\nYour session has expired. Please sign in again with 'login'.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Init(ctx); err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if user := application.Auth.User(); user != nil {
		fmt.Printf("Welcome back, %s.\n", user.Name)
	} else {
		fmt.Println("Welcome to Guidly. Type 'help' for commands.")
	}

	repl(ctx, application)
}

// repl reads commands until EOF or quit. Plain input while a session is
// selected is sent as a chat message.
func repl(ctx context.Context, a *app.App) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt(a))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "health":
			cmdHealth(ctx, a)
		case "register":
			cmdRegister(ctx, a)
		case "login":
			cmdLogin(ctx, a)
		case "logout":
			a.Auth.Logout(ctx, true)
			fmt.Println("Signed out.")
		case "whoami":
			cmdWhoami(a)
		case "sessions":
			cmdSessions(ctx, a)
		case "new":
			cmdNewSession(ctx, a, fields)
		case "switch":
			cmdSwitch(ctx, a, fields)
		case "close":
			cmdClose(ctx, a, fields)
		default:
			cmdChat(ctx, a, line)
		}

		if msg := a.Sessions.Err(); msg != "" {
			fmt.Printf("! %s\n", msg)
			a.Sessions.ClearError()
		}
	}
}

func prompt(a *app.App) string {
	if sess := a.Sessions.CurrentSession(); sess != nil {
		return fmt.Sprintf("[%s] > ", sess.CounselingType)
	}
	return "> "
}

func printHelp() {
	fmt.Println(`Commands:
  register            create an account (then sign in with 'login')
  login               sign in
  logout              sign out
  whoami              show the current account
  sessions            list counseling sessions
  new <type>          start a session (mental_wellbeing, career_guidance, entrepreneurship_guidance)
  switch <id>         open an existing session
  close <id>          close a session
  health              check backend availability
  quit                exit
Anything else is sent to the current session as a message.`)
}

func cmdHealth(ctx context.Context, a *app.App) {
	status, err := a.Client.Health(ctx)
	if err != nil {
		fmt.Printf("Backend unreachable: %v\n", err)
		return
	}
	fmt.Printf("Backend %s (version %s, database %s, %s)\n",
		status.Status, status.Version, status.Database, status.Environment)
}

func cmdRegister(ctx context.Context, a *app.App) {
	email := readLine("Email: ")
	name := readLine("Name: ")
	ageStr := readLine("Age (optional): ")
	password := readPassword("Password: ")

	input := domain.RegisterInput{Email: email, Password: password, Name: name}
	if ageStr != "" {
		age, err := strconv.Atoi(ageStr)
		if err != nil {
			fmt.Println("Age must be a number.")
			return
		}
		input.Age = &age
	}

	user, err := a.Auth.Register(ctx, input)
	if err != nil {
		fmt.Printf("Registration failed: %v\n", err)
		return
	}
	fmt.Printf("Account created for %s. Please sign in with 'login'.\n", user.Email)
}

func cmdLogin(ctx context.Context, a *app.App) {
	email := readLine("Email: ")
	password := readPassword("Password: ")

	if err := a.Auth.Login(ctx, domain.LoginInput{Email: email, Password: password}); err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return
	}

	user := a.Auth.User()
	fmt.Printf("Signed in as %s.\n", user.Name)

	// The dashboard-equivalent: pick up where the user left off.
	a.Sessions.LoadSessions(ctx)
	if sess := a.Sessions.CurrentSession(); sess != nil {
		fmt.Printf("Resuming your %s session.\n", sess.CounselingType)
	}
}

func cmdWhoami(a *app.App) {
	user := a.Auth.User()
	if user == nil || !a.Auth.IsAuthenticated() {
		fmt.Println("Not signed in.")
		return
	}
	fmt.Printf("%s <%s> (joined %s)\n", user.Name, user.Email, user.CreatedAt.Format("2006-01-02"))
}

func cmdSessions(ctx context.Context, a *app.App) {
	a.Sessions.LoadSessions(ctx)
	sessions := a.Sessions.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Start one with 'new <type>'.")
		return
	}
	for _, s := range sessions {
		marker := " "
		if s.IsActive {
			marker = "*"
		}
		fmt.Printf("%s %s  %-25s  %s\n", marker, s.ID, s.CounselingType, s.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func cmdNewSession(ctx context.Context, a *app.App, fields []string) {
	if len(fields) < 2 {
		fmt.Println("Usage: new <counseling type>")
		return
	}
	counselingType, err := domain.ParseCounselingType(fields[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	if sess := a.Sessions.CreateSession(ctx, counselingType); sess != nil {
		fmt.Printf("Started a %s session. Say something.\n", sess.CounselingType)
	}
}

func cmdSwitch(ctx context.Context, a *app.App, fields []string) {
	if len(fields) < 2 {
		fmt.Println("Usage: switch <session id>")
		return
	}
	a.Sessions.SwitchSession(ctx, fields[1])
	for _, m := range a.Sessions.Messages() {
		printMessage(m)
	}
}

func cmdClose(ctx context.Context, a *app.App, fields []string) {
	if len(fields) < 2 {
		fmt.Println("Usage: close <session id>")
		return
	}
	a.Sessions.CloseSession(ctx, fields[1])
}

func cmdChat(ctx context.Context, a *app.App, content string) {
	turn := a.Sessions.SendMessage(ctx, content)
	if turn == nil {
		// A rolled-back send leaves the text recoverable; surface it so
		// the user can retry without retyping.
		if restored, ok := a.Sessions.RestoreRolledBack(); ok {
			fmt.Printf("(not sent: %q)\n", restored)
		}
		return
	}
	if turn.AIMessage != nil {
		printMessage(*turn.AIMessage)
	} else {
		fmt.Println("(the counselor could not respond, try again)")
	}
}

func printMessage(m domain.Message) {
	who := "you"
	if m.Role == domain.RoleAssistant {
		who = "counselor"
	}
	fmt.Printf("%s: %s\n", who, m.Content)
}

func readLine(promptText string) string {
	fmt.Print(promptText)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func readPassword(promptText string) string {
	fmt.Print(promptText)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return readLine("")
	}
	return string(data)
}
