package agents

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	pkg "github.com/pippin-app/realtime-go"
	"github.com/pippin-app/realtime-go/shared"
	"github.com/pippin-app/realtime-go/tools"
	"go.uber.org/zap"
)

// Config is the CLI agent's configuration, loadable from a YAML file.
type Config struct {
	BackendBaseURL   string `yaml:"backend_base_url"`
	SignalingBaseURL string `yaml:"signaling_base_url"`
	Model            string `yaml:"model"`
	Voice            string `yaml:"voice"`
	Email            string `yaml:"email"`
	Password         string `yaml:"password"`
	AccessToken      string `yaml:"access_token"`
	OtoBufferMs      int    `yaml:"oto_buffer_ms"`
	RingSeconds      int    `yaml:"ring_seconds"`
}

// LoadConfig reads a YAML config file, applying defaults for omitted keys.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-realtime-preview-2025-06-03"
	}
	if c.OtoBufferMs == 0 {
		c.OtoBufferMs = 100
	}
	if c.RingSeconds == 0 {
		c.RingSeconds = 2
	}
}

// CLIAgent runs a voice session from a terminal: microphone in, speakers
// out, with a live transcript of status, activity, and events.
type CLIAgent struct {
	logger  shared.LoggerAdapter
	printer *shared.Printer
	client  *pkg.Client
}

func (a *CLIAgent) Spawn(ctx context.Context, logger shared.LoggerAdapter, cfg *Config, printer *shared.Printer) error {
	if logger == nil {
		return shared.ErrNoLogger
	}
	if cfg == nil {
		return errors.New("no config provided")
	}
	if printer == nil {
		return errors.New("no printer provided")
	}
	cfg.applyDefaults()
	a.logger = logger
	a.printer = printer
	a.logger.Info("spawning CLI agent")
	if err := a.printer.Writeln("🤖 Spawning voice agent...\n", 0); err != nil {
		a.logger.Error("printing spawning message", err)
	}

	backend, err := pkg.NewBackend(logger, cfg.BackendBaseURL)
	if err != nil {
		a.logger.Error("creating backend client", err)
		return err
	}
	if cfg.AccessToken != "" {
		backend.SetAccessToken(cfg.AccessToken)
	} else if cfg.Email != "" {
		if err := backend.Login(ctx, cfg.Email, cfg.Password); err != nil {
			a.logger.Error("logging in", err)
			return err
		}
		a.logger.Info("logged in", zap.String("email", cfg.Email))
	}

	signaler, err := pkg.NewHTTPSignaler(cfg.SignalingBaseURL, cfg.Model)
	if err != nil {
		a.logger.Error("creating signaler", err)
		return err
	}

	a.client, err = pkg.NewClient(pkg.Options{
		Logger:     logger,
		Backend:    backend,
		Signaler:   signaler,
		AudioSinks: tools.NewSpeakerProvider(ctx, logger, cfg.OtoBufferMs, cfg.RingSeconds),
	})
	if err != nil {
		a.logger.Error("creating client", err)
		return err
	}

	state := a.client.State()
	if err := state.OnStatusChange(func(status pkg.Status) {
		_ = a.printer.Writeln("⚡ status: "+status.String(), 0)
	}); err != nil {
		return err
	}
	if err := state.OnActivityChange(func(activity pkg.Activity) {
		switch activity {
		case pkg.ActivityUser:
			_ = a.printer.Writeln("🎙 you are speaking", 1)
		case pkg.ActivityAssistant:
			_ = a.printer.Writeln("🔈 assistant is speaking", 1)
		}
	}); err != nil {
		return err
	}
	if err := state.OnEvent(func(event pkg.InboundEvent) {
		a.printEvent(event)
	}); err != nil {
		return err
	}

	if err := a.client.Connect(ctx, pkg.ConnectOptions{Voice: cfg.Voice}); err != nil {
		a.logger.Error("connecting session", err)
		if err := a.printer.Writeln("❌ Unable to establish the voice session.\n", 0); err != nil {
			a.logger.Error("printing connect failure message", err)
		}
		return err
	}
	if err := a.printer.Writeln("✅ Session live. Speak when ready.\n", 0); err != nil {
		a.logger.Error("printing session live message", err)
	}
	return nil
}

func (a *CLIAgent) printEvent(event pkg.InboundEvent) {
	switch ev := event.(type) {
	case *pkg.GenericEvent:
		rendered, err := yaml.MarshalWithOptions(ev.Fields, yaml.UseJSONMarshaler())
		if err != nil {
			a.logger.Error("rendering event", err, zap.String("type", string(ev.Type)))
			return
		}
		_ = a.printer.Writeln("• "+string(ev.Type), 1)
		_ = a.printer.Write(string(rendered), 2)
	case *pkg.FunctionCallDoneEvent:
		_ = a.printer.Writeln("🛠 function call: "+ev.Name, 1)
	case *pkg.RawEvent:
		_ = a.printer.Writeln("• (unparsed) "+ev.Data, 1)
	default:
		_ = a.printer.Writeln("• "+string(event.EventType()), 1)
	}
}

// Done is closed when the underlying session ends.
func (a *CLIAgent) Done() <-chan struct{} {
	return a.client.Done()
}

func (a *CLIAgent) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect()
}
