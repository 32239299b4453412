package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Corpus struct {
		Path string `yaml:"path"`
	} `yaml:"corpus"`

	Images struct {
		Pools         []string `yaml:"pools"` // base-image roots, searched in order
		DisplayWidth  int      `yaml:"displayWidth"`
		DisplayHeight int      `yaml:"displayHeight"`
	} `yaml:"images"`

	Sample struct {
		Root                     string  `yaml:"root"`
		GroupsPerSample          int     `yaml:"groupsPerSample"`
		ImagesPerGroup           int     `yaml:"imagesPerGroup"` // questioned + standards
		HasSameSourceProbability float64 `yaml:"hasSameSourceProbability"`
	} `yaml:"sample"`

	Degradation struct {
		MinAreaPercent  float64 `yaml:"minAreaPercent"`
		MaxAreaPercent  float64 `yaml:"maxAreaPercent"`
		MinEccentricity float64 `yaml:"minEccentricity"`
		MaxEccentricity float64 `yaml:"maxEccentricity"`
	} `yaml:"degradation"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"` // tokens per second
	} `yaml:"rateLimit"`
}

// Load reads the config.yaml file and fills in defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Sample.Root == "" {
		c.Sample.Root = "./samples"
	}
	if c.Sample.GroupsPerSample == 0 {
		c.Sample.GroupsPerSample = 10
	}
	if c.Sample.ImagesPerGroup == 0 {
		c.Sample.ImagesPerGroup = 11
	}
	if c.Sample.HasSameSourceProbability == 0 {
		c.Sample.HasSameSourceProbability = 0.85
	}
	if c.Degradation.MinAreaPercent == 0 {
		c.Degradation.MinAreaPercent = 10
	}
	if c.Degradation.MaxAreaPercent == 0 {
		c.Degradation.MaxAreaPercent = 25
	}
	if c.Degradation.MinEccentricity == 0 {
		c.Degradation.MinEccentricity = 0.1
	}
	if c.Degradation.MaxEccentricity == 0 {
		c.Degradation.MaxEccentricity = 0.5
	}
	if c.Images.DisplayWidth == 0 {
		c.Images.DisplayWidth = 800
	}
	if c.Images.DisplayHeight == 0 {
		c.Images.DisplayHeight = 600
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
}

// MySQLDSN builds the MySQL connection string
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
