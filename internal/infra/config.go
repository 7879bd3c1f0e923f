package infra

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// GetPlatformUserAgent generates a browser-like User-Agent string based on current OS.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		return "Mozilla/5.0 (compatible; CryptoArb/1.0)"
	}
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode          string `yaml:"mode"` // PAPER or REAL
		Symbol        string `yaml:"symbol"`
		BidFee        string `yaml:"bid_fee"` // fraction, "0.005" = 0.5%
		AskFee        string `yaml:"ask_fee"`
		InboxSize     int    `yaml:"inbox_size"`
		StaleAfterSec int    `yaml:"stale_after_sec"` // 0 disables the sweep
	} `yaml:"trading"`

	API struct {
		BlinkTrade struct {
			WSURL        string `yaml:"ws_url"`
			Username     string `yaml:"username"`
			Password     string `yaml:"password"`
			BrokerID     string `yaml:"broker_id"` // optional, taken from the login response if empty
			HeartbeatSec int    `yaml:"heartbeat_sec"`
		} `yaml:"blinktrade"`
		Bitstamp struct {
			WSURL        string `yaml:"ws_url"`
			AppKey       string `yaml:"app_key"`
			Channel      string `yaml:"channel"`
			RestURL      string `yaml:"rest_url"`
			APIKey       string `yaml:"api_key"`
			APISecret    string `yaml:"api_secret"`
			CustomerID   string `yaml:"customer_id"`
			TimeoutMS    int    `yaml:"timeout_ms"`
			RatePerSec   int    `yaml:"rate_per_sec"`
			HedgeBacklog int    `yaml:"hedge_backlog"`
		} `yaml:"bitstamp"`
	} `yaml:"api"`

	Admin struct {
		Addr        string   `yaml:"addr"` // empty disables the admin server
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"admin"`

	Storage struct {
		JournalFile string `yaml:"journal_file"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
		File   string `yaml:"file"`
	} `yaml:"logging"`

	bidFee decimal.Decimal
	askFee decimal.Decimal
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// .env in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig applies defaults, env overrides and validation to raw YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	cfg.applyDefaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.App.Name = "crypto-arb"
	c.Trading.Mode = "PAPER"
	c.Trading.Symbol = "BTCUSD"
	c.Trading.BidFee = "0"
	c.Trading.AskFee = "0"
	c.Trading.InboxSize = 1024
	c.API.BlinkTrade.HeartbeatSec = 30
	c.API.Bitstamp.WSURL = "wss://ws.pusherapp.com/app/de504dc5763aeef9ff52?protocol=7&client=go&version=1.0"
	c.API.Bitstamp.Channel = "order_book"
	c.API.Bitstamp.RestURL = "https://www.bitstamp.net"
	c.API.Bitstamp.TimeoutMS = 5000
	c.API.Bitstamp.RatePerSec = 5
	c.API.Bitstamp.HedgeBacklog = 256
	c.Storage.JournalFile = "journal.db"
	c.Logging.Level = "info"
	c.Logging.Format = "text"
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !isWS(c.API.BlinkTrade.WSURL) {
		return fmt.Errorf("invalid BlinkTrade WS URL: %q", c.API.BlinkTrade.WSURL)
	}
	if !isWS(c.API.Bitstamp.WSURL) {
		return fmt.Errorf("invalid Bitstamp WS URL: %q", c.API.Bitstamp.WSURL)
	}
	if !strings.HasPrefix(c.API.Bitstamp.RestURL, "http://") && !strings.HasPrefix(c.API.Bitstamp.RestURL, "https://") {
		return fmt.Errorf("invalid Bitstamp REST URL: %q", c.API.Bitstamp.RestURL)
	}
	if c.API.BlinkTrade.Username == "" || c.API.BlinkTrade.Password == "" {
		return fmt.Errorf("BlinkTrade credentials are required")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}

	var err error
	if c.bidFee, err = parseFee(c.Trading.BidFee); err != nil {
		return fmt.Errorf("bid_fee: %w", err)
	}
	if c.askFee, err = parseFee(c.Trading.AskFee); err != nil {
		return fmt.Errorf("ask_fee: %w", err)
	}

	c.Trading.Mode = strings.ToUpper(c.Trading.Mode)
	switch c.Trading.Mode {
	case "PAPER":
	case "REAL":
		if c.API.Bitstamp.APIKey == "" || c.API.Bitstamp.APISecret == "" || c.API.Bitstamp.CustomerID == "" {
			return fmt.Errorf("REAL mode requires Bitstamp api_key, api_secret and customer_id")
		}
	default:
		return fmt.Errorf("unknown trading mode %q", c.Trading.Mode)
	}

	if c.Trading.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive")
	}
	if c.Trading.StaleAfterSec < 0 {
		return fmt.Errorf("stale_after_sec must not be negative")
	}
	if c.API.Bitstamp.TimeoutMS <= 0 || c.API.Bitstamp.RatePerSec <= 0 || c.API.Bitstamp.HedgeBacklog <= 0 {
		return fmt.Errorf("bitstamp timeout, rate and backlog must be positive")
	}
	return nil
}

// Fees returns the validated bid and ask fees.
func (c *Config) Fees() (bid, ask decimal.Decimal) {
	return c.bidFee, c.askFee
}

func parseFee(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("fee %s out of [0, 1)", s)
	}
	return d, nil
}

func isWS(u string) bool {
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://")
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
// 환경 변수는 설정 파일보다 우선합니다.
func overrideWithEnv(cfg *Config) {
	if cfg.API.BlinkTrade.Password != "" || cfg.API.Bitstamp.APISecret != "" {
		// Using fmt instead of slog: the logger is built from this config
		fmt.Println("⚠️  SECURITY WARNING: secrets found in config file.")
		fmt.Println("   Recommendation: use environment variables or .env instead:")
		fmt.Println("   - ARB_BLINKTRADE_USERNAME, ARB_BLINKTRADE_PASSWORD")
		fmt.Println("   - ARB_BITSTAMP_KEY, ARB_BITSTAMP_SECRET, ARB_BITSTAMP_CUSTOMER_ID")
	}

	setIf := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setIf(&cfg.API.BlinkTrade.Username, "ARB_BLINKTRADE_USERNAME")
	setIf(&cfg.API.BlinkTrade.Password, "ARB_BLINKTRADE_PASSWORD")
	setIf(&cfg.API.BlinkTrade.WSURL, "ARB_BLINKTRADE_WS_URL")
	setIf(&cfg.API.Bitstamp.APIKey, "ARB_BITSTAMP_KEY")
	setIf(&cfg.API.Bitstamp.APISecret, "ARB_BITSTAMP_SECRET")
	setIf(&cfg.API.Bitstamp.CustomerID, "ARB_BITSTAMP_CUSTOMER_ID")
	setIf(&cfg.Trading.Mode, "ARB_TRADING_MODE")
	setIf(&cfg.Trading.BidFee, "ARB_BID_FEE")
	setIf(&cfg.Trading.AskFee, "ARB_ASK_FEE")
	if v, err := strconv.Atoi(os.Getenv("ARB_STALE_AFTER_SEC")); err == nil {
		cfg.Trading.StaleAfterSec = v
	}
}
