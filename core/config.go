package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName   string
		Env       string // DEV (local; default), TEST, QA, PROD
		Build     string
		Debug     bool
		TestMode  bool
		SecretKey string

		Server     ServerConfig
		Attendance AttendanceConfig
		Email      EmailConfig

		RollbarToken string
	}

	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	AttendanceConfig struct {
		CameraEnabled        bool
		CameraWidth          int
		CameraHeight         int
		CameraWarmup         time.Duration
		MaxUploadSize        int64
		MaxImageWidth        int
		MaxImageHeight       int
		JPEGQuality          int
		RecognitionURL       string // empty: use the fixed-delay mock
		RecognitionTimeout   time.Duration
		MockRecognitionDelay time.Duration
		SinkURL              string // empty: record into the in-memory store
		SinkTimeout          time.Duration
		SessionIdleTimeout   time.Duration
		SweepSpec            string
		SendReceipts         bool
	}

	EmailConfig struct {
		DefaultFromEmail string
		DefaultFromName  string
		SendgridApiKey   string
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Roll Call")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "r0ll-c4ll$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("attendance.cameraEnabled", true)
	v.SetDefault("attendance.cameraWidth", 640)
	v.SetDefault("attendance.cameraHeight", 480)
	v.SetDefault("attendance.cameraWarmup", 200*time.Millisecond)
	v.SetDefault("attendance.maxUploadSize", int64(10<<20))
	v.SetDefault("attendance.maxImageWidth", 1920)
	v.SetDefault("attendance.maxImageHeight", 1080)
	v.SetDefault("attendance.jpegQuality", 90)
	v.SetDefault("attendance.recognitionURL", "")
	v.SetDefault("attendance.recognitionTimeout", 30*time.Second)
	v.SetDefault("attendance.mockRecognitionDelay", 3*time.Second)
	v.SetDefault("attendance.sinkURL", "")
	v.SetDefault("attendance.sinkTimeout", 15*time.Second)
	v.SetDefault("attendance.sessionIdleTimeout", 15*time.Minute)
	v.SetDefault("attendance.sweepSpec", "@every 1m")
	v.SetDefault("attendance.sendReceipts", false)

	v.SetDefault("email.defaultFromEmail", "noreply@localhost")
	v.SetDefault("email.defaultFromName", "Roll Call")
	v.SetDefault("email.sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:   v.GetString("appName"),
		Env:       env,
		Build:     v.GetString("build"),
		Debug:     v.GetBool("debug"),
		TestMode:  v.GetBool("testMode"),
		SecretKey: v.GetString("secretKey"),
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Attendance: AttendanceConfig{
			CameraEnabled:        v.GetBool("attendance.cameraEnabled"),
			CameraWidth:          v.GetInt("attendance.cameraWidth"),
			CameraHeight:         v.GetInt("attendance.cameraHeight"),
			CameraWarmup:         v.GetDuration("attendance.cameraWarmup"),
			MaxUploadSize:        v.GetInt64("attendance.maxUploadSize"),
			MaxImageWidth:        v.GetInt("attendance.maxImageWidth"),
			MaxImageHeight:       v.GetInt("attendance.maxImageHeight"),
			JPEGQuality:          v.GetInt("attendance.jpegQuality"),
			RecognitionURL:       v.GetString("attendance.recognitionURL"),
			RecognitionTimeout:   v.GetDuration("attendance.recognitionTimeout"),
			MockRecognitionDelay: v.GetDuration("attendance.mockRecognitionDelay"),
			SinkURL:              v.GetString("attendance.sinkURL"),
			SinkTimeout:          v.GetDuration("attendance.sinkTimeout"),
			SessionIdleTimeout:   v.GetDuration("attendance.sessionIdleTimeout"),
			SweepSpec:            v.GetString("attendance.sweepSpec"),
			SendReceipts:         v.GetBool("attendance.sendReceipts"),
		},
		Email: EmailConfig{
			DefaultFromEmail: v.GetString("email.defaultFromEmail"),
			DefaultFromName:  v.GetString("email.defaultFromName"),
			SendgridApiKey:   v.GetString("email.sendgridApiKey"),
		},
		RollbarToken: v.GetString("rollbarToken"),
	}
}

// NewTestConfig returns the configuration used by tests: no delays, no outbound services.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Attendance.CameraWarmup = 0
	conf.Attendance.MockRecognitionDelay = 0
	conf.Attendance.RecognitionURL = ""
	conf.Attendance.SinkURL = ""
	conf.Attendance.SendReceipts = false
	return conf
}
