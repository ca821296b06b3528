package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv          string
	AppPort         string
	ShutdownTimeout time.Duration

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	KafkaBrokers     []string
	KafkaNotifyTopic string

	JWTAlg           string
	JWTSecret        string
	JWTPublicKeyPath string

	S3Region     string
	S3Bucket     string
	S3PublicRead bool

	WSPingInterval  time.Duration
	WSWriteDeadline time.Duration
	WSMaxMsgSize    int64
	WSSendBuffer    int
}

func Load() *Config {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	configPath := filepath.Join(wd, "config")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AutomaticEnv()

	viper.SetDefault("app_env", "development")
	viper.SetDefault("app_port", "8080")
	viper.SetDefault("shutdown_timeout", 10*time.Second)
	viper.SetDefault("mongo_uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo_db", "orisharin")
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_prefix", "ws")
	viper.SetDefault("kafka_notify_topic", "notifications")
	viper.SetDefault("jwt_alg", "HS256")
	viper.SetDefault("ws_ping_interval", 30*time.Second)
	viper.SetDefault("ws_write_deadline", 10*time.Second)
	viper.SetDefault("ws_max_msg_size", 1<<20)
	viper.SetDefault("ws_send_buffer", 256)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("no config.yaml found (%v), using defaults and env", err)
	}

	return &Config{
		AppEnv:          viper.GetString("app_env"),
		AppPort:         viper.GetString("app_port"),
		ShutdownTimeout: viper.GetDuration("shutdown_timeout"),

		MongoURI: viper.GetString("mongo_uri"),
		MongoDB:  viper.GetString("mongo_db"),

		RedisAddr:     viper.GetString("redis_addr"),
		RedisPassword: viper.GetString("redis_password"),
		RedisDB:       viper.GetInt("redis_db"),
		RedisPrefix:   viper.GetString("redis_prefix"),

		KafkaBrokers:     viper.GetStringSlice("kafka_brokers"),
		KafkaNotifyTopic: viper.GetString("kafka_notify_topic"),

		JWTAlg:           viper.GetString("jwt_alg"),
		JWTSecret:        viper.GetString("jwt_secret"),
		JWTPublicKeyPath: viper.GetString("jwt_public_key_path"),

		S3Region:     viper.GetString("s3_region"),
		S3Bucket:     viper.GetString("s3_bucket"),
		S3PublicRead: viper.GetBool("s3_public_read"),

		WSPingInterval:  viper.GetDuration("ws_ping_interval"),
		WSWriteDeadline: viper.GetDuration("ws_write_deadline"),
		WSMaxMsgSize:    viper.GetInt64("ws_max_msg_size"),
		WSSendBuffer:    viper.GetInt("ws_send_buffer"),
	}
}
