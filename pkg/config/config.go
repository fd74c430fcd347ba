package config

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/logging"
	"github.com/go-go-golems/chatsurface/pkg/persistence/chatstore"
	"github.com/go-go-golems/chatsurface/pkg/redisstream"
)

const (
	EnvPrefix       = "CHATSURFACE_"
	DefaultPromoURL = "https://lottefinance.vn/promotions"
	DefaultEndpoint = "ws://localhost:8080/ws"
)

// Settings is the resolved configuration of a chatsurface process.
type Settings struct {
	Endpoint         string               `yaml:"endpoint" validate:"required,wsurl"`
	HandshakeTimeout time.Duration        `yaml:"handshake_timeout" validate:"gte=0"`
	WriteTimeout     time.Duration        `yaml:"write_timeout" validate:"gte=0"`
	PromoURL         string               `yaml:"promo_url" validate:"required,url"`
	Welcome          chat.Welcome         `yaml:"welcome"`
	Transcript       string               `yaml:"transcript" validate:"oneof=memory sqlite"`
	Redis            redisstream.Settings `yaml:"redis"`
	Log              logging.Settings     `yaml:"log"`
}

func Default() Settings {
	return Settings{
		Endpoint:         DefaultEndpoint,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PromoURL:         DefaultPromoURL,
		Welcome:          chat.DefaultWelcome(),
		Transcript:       chatstore.BackendMemory,
		Redis:            redisstream.DefaultSettings(),
		Log:              logging.DefaultSettings(),
	}
}

type LoadOptions struct {
	// File is a YAML file. When empty, CHATSURFACE_CONFIG is consulted.
	File string
	// EnvFiles are dotenv files; missing ones are skipped. Defaults to ".env".
	EnvFiles []string
	// LookupEnv defaults to os.LookupEnv. Process variables win over dotenv
	// values.
	LookupEnv func(string) (string, bool)
}

// Load resolves settings from defaults, dotenv files, the YAML file and
// CHATSURFACE_* variables, in that order, and validates the result.
func Load(opts LoadOptions) (Settings, error) {
	lookup, err := envLookup(opts)
	if err != nil {
		return Settings{}, err
	}

	s := Default()
	file := opts.File
	if file == "" {
		file, _ = lookup(EnvPrefix + "CONFIG")
	}
	if file != "" {
		if err := mergeFile(&s, file); err != nil {
			return Settings{}, err
		}
	}
	if err := applyEnv(&s, lookup); err != nil {
		return Settings{}, err
	}
	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func envLookup(opts LoadOptions) (func(string) (string, bool), error) {
	processLookup := opts.LookupEnv
	if processLookup == nil {
		processLookup = os.LookupEnv
	}
	files := opts.EnvFiles
	if files == nil {
		files = []string{".env"}
	}
	dotenv := map[string]string{}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read env file %s", f)
		}
		for k, v := range values {
			if _, ok := dotenv[k]; !ok {
				dotenv[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if v, ok := processLookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func mergeFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = b
		return nil
	}

	str("ENDPOINT", &s.Endpoint)
	str("PROMO_URL", &s.PromoURL)
	str("TRANSCRIPT", &s.Transcript)
	str("REDIS_ADDR", &s.Redis.Addr)
	str("REDIS_GROUP", &s.Redis.Group)
	str("REDIS_CONSUMER", &s.Redis.Consumer)
	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FILE", &s.Log.File)
	s.Log.Level = strings.ToLower(s.Log.Level)
	for _, err := range []error{
		dur("HANDSHAKE_TIMEOUT", &s.HandshakeTimeout),
		dur("WRITE_TIMEOUT", &s.WriteTimeout),
		boolean("REDIS_ENABLED", &s.Redis.Enabled),
		boolean("LOG_JSON", &s.Log.JSON),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("wsurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
	})
	return v
}

// Validate checks s, reporting every invalid field.
func Validate(s Settings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return errors.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// YAML renders s in the format Load reads.
func YAML(s Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return buf.Bytes(), nil
}
