package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mail-chat-bridge/internal/config"
	domaincmd "mail-chat-bridge/internal/domain/command"
	"mail-chat-bridge/internal/domain/message"
	"mail-chat-bridge/internal/infrastructure/gmail"
	"mail-chat-bridge/internal/infrastructure/googleauth"
	"mail-chat-bridge/internal/infrastructure/graph"
	"mail-chat-bridge/internal/infrastructure/openai"
	"mail-chat-bridge/internal/infrastructure/telegram"
	"mail-chat-bridge/internal/interface/http/handler"
	ucmd "mail-chat-bridge/internal/usecase/command"
	"mail-chat-bridge/internal/usecase/notification"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:          "mail-chat-bridge",
		Short:        "Read, draft and answer mailbox messages from a Telegram chat",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), v)
		},
	}
	root.PersistentFlags().String("port", "", "listen port (overrides PORT)")
	_ = v.BindPFlag("PORT", root.PersistentFlags().Lookup("port"))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the webhook server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), v)
			},
		},
		newAuthCmd(v),
		newParseCmd(),
	)
	return root
}

func newAuthCmd(v *viper.Viper) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Obtain provider credentials",
	}
	auth.AddCommand(&cobra.Command{
		Use:   "gmail",
		Short: "Run the Gmail OAuth loopback flow and save the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v.Set("MAIL_PROVIDER", config.ProviderGmail)
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ga, err := googleauth.NewGoogleAuth(cfg)
			if err != nil {
				return err
			}
			return ga.ObtainTokenInteractive(cmd.Context())
		},
	})
	return auth
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a chat line is understood",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			in, ok := domaincmd.Parse(args[0])
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "(ignored: no command)")
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "command=%s target=%q argument=%q\n", in.Command, in.TargetID, in.Argument)
		},
	}
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mail, err := newMailGateway(ctx, cfg)
	if err != nil {
		return err
	}
	notifier := telegram.NewNotifier(cfg)
	drafter := openai.NewDrafter(cfg)
	if cfg.OpenAIAPIKey == "" {
		log.Printf("[flow] OPENAI_API_KEY not set, drafts use the fallback text")
	}
	if cfg.TelegramToken == "" {
		log.Printf("[flow] TELEGRAM_TOKEN not set, chat messages are dropped")
	}

	app := handler.NewApp(
		handler.NewGraphHandler(notification.NewReducer(mail, notifier)),
		handler.NewTelegramHandler(ucmd.NewDispatcher(mail, drafter, notifier), cfg.TelegramSecretToken),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[flow] server listening on :%s (mail provider: %s)", cfg.Port, cfg.MailProvider)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Printf("[flow] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newMailGateway(ctx context.Context, cfg *config.Config) (message.Gateway, error) {
	switch cfg.MailProvider {
	case config.ProviderGmail:
		srv, err := googleauth.BuildGmailService(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("gmail service: %w", err)
		}
		return gmail.NewGateway(srv), nil
	default:
		return graph.NewGateway(ctx, cfg), nil
	}
}
