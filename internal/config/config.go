// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sensor sources accepted by SENSOR_SOURCE.
const (
	SourceBMP280 = "bmp280"
	SourceNMEA   = "nmea"
	SourceMQTT   = "mqtt"
	SourceMock   = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDBridge   string

	// Topics
	TopicPressure string

	// Sensor
	SensorSource         string
	SensorSampleInterval int // milliseconds
	SensorStartTimeout   int // milliseconds

	// BMP280 Hardware (SPI wins when both are set)
	BMPSPIDevice string
	BMPI2CBus    string
	BMPI2CAddr   uint16

	// BMP280 Configuration
	BMPPressureOSR byte
	BMPTempOSR     byte
	BMPIIRFilter   byte

	// NMEA weather station
	NMEASerialPort string
	NMEABaudRate   int

	// Mock sensor
	MockBaselineHPa float64
	MockSeed        int64

	// Watch cadence
	WatchFrequency     int // milliseconds
	DemoWatchFrequency int // milliseconds

	// Demo gauge
	DemoMinPressure int
	DemoMaxPressure int
	DemoPicSize     int // pixels

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// History
	HistoryMaxReadings int
	DatabaseURL        string
	PGMaxConns         int
	HistorySQLitePath  string

	// Kafka (readings are mirrored when brokers are set)
	KafkaBrokers []string
	KafkaTopic   string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "barometer-producer",
		MQTTClientIDBridge:   "barometer-bridge",
		TopicPressure:        "barometer/pressure",

		SensorSource:         SourceMock,
		SensorSampleInterval: 60,
		SensorStartTimeout:   2000,

		BMPI2CAddr:     0x76,
		BMPPressureOSR: 3,
		BMPTempOSR:     1,
		BMPIIRFilter:   0,

		NMEABaudRate: 4800,

		MockBaselineHPa: 1013.2,

		WatchFrequency:     10000,
		DemoWatchFrequency: 10,

		DemoMinPressure: 1000,
		DemoMaxPressure: 1030,
		DemoPicSize:     100,

		WebServerPort: 8080,

		DisplayUpdateInterval: 200,

		HistoryMaxReadings: 10000,
		PGMaxConns:         4,

		KafkaTopic: "barometer.readings",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	val, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, val)
	}
	return val, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return uint16(addr), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_BRIDGE":
		c.MQTTClientIDBridge = value

	// Topics
	case "TOPIC_PRESSURE":
		c.TopicPressure = value

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case SourceBMP280, SourceNMEA, SourceMQTT, SourceMock:
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be one of bmp280, nmea, mqtt, mock, got %q", value)
		}
	case "SENSOR_SAMPLE_INTERVAL":
		c.SensorSampleInterval, err = parseInt(key, value, 1, 60000)
	case "SENSOR_START_TIMEOUT":
		c.SensorStartTimeout, err = parseInt(key, value, 1, 600000)

	// BMP280 Hardware
	case "BMP_SPI_DEVICE":
		c.BMPSPIDevice = value
	case "BMP_I2C_BUS":
		c.BMPI2CBus = value
	case "BMP_I2C_ADDR":
		c.BMPI2CAddr, err = parseAddr(key, value)

	// BMP280 Configuration
	case "BMP_PRESSURE_OSR":
		var val int
		val, err = parseInt(key, value, 0, 5)
		c.BMPPressureOSR = byte(val)
	case "BMP_TEMP_OSR":
		var val int
		val, err = parseInt(key, value, 0, 5)
		c.BMPTempOSR = byte(val)
	case "BMP_IIR_FILTER":
		var val int
		val, err = parseInt(key, value, 0, 4)
		c.BMPIIRFilter = byte(val)

	// NMEA
	case "NMEA_SERIAL_PORT":
		c.NMEASerialPort = value
	case "NMEA_BAUD_RATE":
		c.NMEABaudRate, err = parseInt(key, value, 1200, 921600)

	// Mock
	case "MOCK_BASELINE_HPA":
		hpa, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid MOCK_BASELINE_HPA %q: %w", value, perr)
		}
		if hpa < 300 || hpa > 1100 {
			return fmt.Errorf("MOCK_BASELINE_HPA must be 300-1100, got %v", hpa)
		}
		c.MockBaselineHPa = hpa
	case "MOCK_SEED":
		seed, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid MOCK_SEED %q: %w", value, perr)
		}
		c.MockSeed = seed

	// Watch cadence
	case "WATCH_FREQUENCY":
		c.WatchFrequency, err = parseInt(key, value, 1, 86400000)
	case "DEMO_WATCH_FREQUENCY":
		c.DemoWatchFrequency, err = parseInt(key, value, 1, 86400000)

	// Demo gauge
	case "DEMO_MIN_PRESSURE":
		c.DemoMinPressure, err = parseInt(key, value, 0, 2000)
	case "DEMO_MAX_PRESSURE":
		c.DemoMaxPressure, err = parseInt(key, value, 0, 2000)
	case "DEMO_PIC_SIZE":
		c.DemoPicSize, err = parseInt(key, value, 1, 4096)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1, 60000)

	// History
	case "HISTORY_MAX_READINGS":
		c.HistoryMaxReadings, err = parseInt(key, value, 1, 1000000)
	case "DATABASE_URL":
		c.DatabaseURL = value
	case "PG_MAX_CONNS":
		c.PGMaxConns, err = parseInt(key, value, 1, 100)
	case "HISTORY_SQLITE_PATH":
		c.HistorySQLitePath = value

	// Kafka
	case "KAFKA_BROKERS":
		c.KafkaBrokers = nil
		for _, broker := range strings.Split(value, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, broker)
			}
		}
	case "KAFKA_TOPIC":
		c.KafkaTopic = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.TopicPressure == "" {
		return fmt.Errorf("TOPIC_PRESSURE is required")
	}
	switch c.SensorSource {
	case SourceBMP280:
		if c.BMPSPIDevice == "" && c.BMPI2CBus == "" {
			return fmt.Errorf("BMP_SPI_DEVICE or BMP_I2C_BUS is required for SENSOR_SOURCE=bmp280")
		}
	case SourceNMEA:
		if c.NMEASerialPort == "" {
			return fmt.Errorf("NMEA_SERIAL_PORT is required for SENSOR_SOURCE=nmea")
		}
	case SourceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for SENSOR_SOURCE=mqtt")
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SensorSampleInterval) * time.Millisecond
}

func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.SensorStartTimeout) * time.Millisecond
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchFrequency) * time.Millisecond
}

func (c *Config) DemoWatchInterval() time.Duration {
	return time.Duration(c.DemoWatchFrequency) * time.Millisecond
}

func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
