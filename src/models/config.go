package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
	Broker   MBrokerConfig  `yaml:"broker"`
	Trading  MTradingConfig `yaml:"trading"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

// MBrokerConfig holds KIS OpenAPI credentials and endpoints.
// Env selects between live ("prod") and paper ("vps") trading.
type MBrokerConfig struct {
	Env            string `yaml:"env"`
	AppKey         string `yaml:"app_key"`
	AppSecret      string `yaml:"app_secret"`
	PaperAppKey    string `yaml:"paper_app_key"`
	PaperAppSecret string `yaml:"paper_app_secret"`
	Account        string `yaml:"account"`
	PaperAccount   string `yaml:"paper_account"`
	ProductCode    string `yaml:"product_code"`
	RestURL        string `yaml:"rest_url"`
	PaperRestURL   string `yaml:"paper_rest_url"`
	WsURL          string `yaml:"ws_url"`
	PaperWsURL     string `yaml:"paper_ws_url"`
}

type MTradingConfig struct {
	CheckIntervalSeconds int    `yaml:"check_interval_seconds"`
	WindowStart          string `yaml:"window_start"`
	WindowEnd            string `yaml:"window_end"`
	MaxDailyTrades       int    `yaml:"max_daily_trades"`
	StopLossMonitoring   bool   `yaml:"stop_loss_monitoring"`
	AutoStart            bool   `yaml:"auto_start"`
}
