/*
Package config loads the configuration of the s3drive tool and of embedding hosts.

Values are layered with increasing precedence: compiled-in defaults from
NewDefault, a YAML file applied with LoadFromFile, then S3DRIVE_*
environment variables applied with LoadFromEnv. Validate must succeed
before the configuration is used.

# File layout

	global:
	  log_level: INFO          # DEBUG, INFO, WARN, ERROR
	  log_format: text         # text or json
	  log_file: /var/log/s3drive.log
	  log_max_size_mb: 100
	  log_max_backups: 5
	storage:
	  bucket: media
	  protocol: auto           # auto, https or http
	  public_base_url: cdn.example.com
	  s3:
	    region: us-east-1
	    endpoint: http://localhost:9000
	    force_path_style: true
	    max_retries: 3
	    request_timeout: 30s
	    pool_size: 8
	    storage_tier: STANDARD
	    enable_cargoship_optimization: false
	  circuit_breaker:
	    enabled: true
	    failure_threshold: 5
	    cooldown: 30s
	driver:
	  storage_id: s3
	  processing_folder: _processed_
	  scratch_dir: /tmp/s3drive
	  capabilities: [browsable, public, writable]
	monitoring:
	  metrics:
	    enabled: true
	    address: ":9464"
	    path: /metrics
	    namespace: s3drive

# Environment variables

	S3DRIVE_LOG_LEVEL, S3DRIVE_LOG_FORMAT, S3DRIVE_LOG_FILE
	S3DRIVE_BUCKET, S3DRIVE_PROTOCOL, S3DRIVE_PUBLIC_BASE_URL
	S3DRIVE_REGION, S3DRIVE_ENDPOINT, S3DRIVE_FORCE_PATH_STYLE
	S3DRIVE_ACCESS_KEY_ID, S3DRIVE_SECRET_ACCESS_KEY, S3DRIVE_SESSION_TOKEN
	S3DRIVE_MAX_RETRIES, S3DRIVE_REQUEST_TIMEOUT, S3DRIVE_POOL_SIZE
	S3DRIVE_STORAGE_TIER, S3DRIVE_CARGOSHIP
	S3DRIVE_STORAGE_ID, S3DRIVE_PROCESSING_FOLDER, S3DRIVE_SCRATCH_DIR
	S3DRIVE_CAPABILITIES (comma separated)
	S3DRIVE_METRICS_ENABLED, S3DRIVE_METRICS_ADDRESS

Credentials left empty fall back to the AWS default credential chain.

# Usage

	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts := cfg.DriverOptions()
*/
package config
