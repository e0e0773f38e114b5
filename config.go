package main

import (
	"fmt"
	"os"
	"time"

	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
	"github.com/actyvystom/cloudinary-demo/modules/httpserver"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	httpPortKey          = "http.port"
	uploadMaxSizeKey     = "upload.max_size"
	uploadDirKey         = "upload.dir"
	cloudNameKey         = "cloudinary.cloud_name"
	cloudAPIKeyKey       = "cloudinary.api_key"
	cloudAPISecretKey    = "cloudinary.api_secret"
	cloudURLKey          = "cloudinary.url"
	cloudBaseURLKey      = "cloudinary.base_url"
	cloudTimeoutKey      = "cloudinary.timeout"
	shutdownTimeoutKey   = "shutdown.timeout"
	serverURLKey         = "server"
	cacheMaxAgeKey       = "cache.max_age"
	defaultMaxUploadSize = 10 * 1024 * 1024
)

// envBindings maps config keys to the environment variables that set them.
// When several are listed, the first one set wins.
var envBindings = map[string][]string{
	httpPortKey:        {"HTTP_PORT"},
	uploadMaxSizeKey:   {"MAX_UPLOAD_SIZE"},
	uploadDirKey:       {"UPLOAD_DIR"},
	cloudNameKey:       {"CLOUDINARY_CLOUD_NAME"},
	cloudAPIKeyKey:     {"CLOUDINARY_API_KEY"},
	cloudAPISecretKey:  {"CLOUDINARY_SECRET", "CLOUDINARY_API_SECRET"},
	cloudURLKey:        {"CLOUDINARY_URL"},
	cloudBaseURLKey:    {"CLOUDINARY_API_BASE_URL"},
	cloudTimeoutKey:    {"CLOUDINARY_TIMEOUT"},
	shutdownTimeoutKey: {"SHUTDOWN_TIMEOUT"},
	serverURLKey:       {"GALLERY_SERVER_URL"},
	cacheMaxAgeKey:     {"GALLERY_CACHE_MAX_AGE"},
}

func newConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault(httpPortKey, 3000)
	v.SetDefault(uploadMaxSizeKey, defaultMaxUploadSize)
	v.SetDefault(uploadDirKey, os.TempDir())
	v.SetDefault(cloudBaseURLKey, cloudinary.DefaultBaseURL)
	v.SetDefault(cloudTimeoutKey, 60*time.Second)
	v.SetDefault(shutdownTimeoutKey, 30*time.Second)
	v.SetDefault(serverURLKey, "http://localhost:3000")
	v.SetDefault(cacheMaxAgeKey, time.Duration(0))

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			panic(err)
		}
	}
	return v
}

func mustBindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

type serverConfig struct {
	http            httpserver.Config
	cloudinary      cloudinary.Config
	shutdownTimeout time.Duration
}

func loadServerConfig(v *viper.Viper) (serverConfig, error) {
	cfg := serverConfig{
		http: httpserver.Config{
			Port:          v.GetInt(httpPortKey),
			MaxUploadSize: v.GetInt64(uploadMaxSizeKey),
			UploadDir:     v.GetString(uploadDirKey),
		},
		cloudinary: cloudinary.Config{
			CloudName: v.GetString(cloudNameKey),
			APIKey:    v.GetString(cloudAPIKeyKey),
			APISecret: v.GetString(cloudAPISecretKey),
			BaseURL:   v.GetString(cloudBaseURLKey),
			Timeout:   v.GetDuration(cloudTimeoutKey),
		},
		shutdownTimeout: v.GetDuration(shutdownTimeoutKey),
	}

	if raw := v.GetString(cloudURLKey); raw != "" {
		fromURL, err := cloudinary.ParseURL(raw)
		if err != nil {
			return serverConfig{}, err
		}
		cfg.cloudinary = cfg.cloudinary.Merge(fromURL)
	}

	if cfg.http.Port <= 0 || cfg.http.Port > 65535 {
		return serverConfig{}, fmt.Errorf("invalid %s: %d", httpPortKey, cfg.http.Port)
	}
	if cfg.http.MaxUploadSize <= 0 {
		return serverConfig{}, fmt.Errorf("invalid %s: %d", uploadMaxSizeKey, cfg.http.MaxUploadSize)
	}
	if cfg.shutdownTimeout <= 0 {
		return serverConfig{}, fmt.Errorf("invalid %s: %s", shutdownTimeoutKey, cfg.shutdownTimeout)
	}
	return cfg, nil
}
