package config

type Config struct {
	Debug    bool     `mapstructure:"debug"`
	Server   Server   `mapstructure:"server"`
	Micropub Micropub `mapstructure:"micropub"`
	Content  Content  `mapstructure:"content"`
	Media    Media    `mapstructure:"media"`
}

type Server struct {
	Address   string       `mapstructure:"address" validate:"required,hostname|ip"`
	Port      int          `mapstructure:"port" validate:"required,min=1,max=65535"`
	PublicUrl string       `mapstructure:"public_url" validate:"required,url"`
	Limits    ServerLimits `mapstructure:"limits"`
}

type ServerLimits struct {
	MaxPayloadSize  uint `mapstructure:"max_payload_size" validate:"required"`
	MaxFileSize     uint `mapstructure:"max_file_size" validate:"required"`
	MaxMultipartMem uint `mapstructure:"max_multipart_mem" validate:"required"`
}

type Micropub struct {
	MeUrl         string              `mapstructure:"me_url" validate:"required,url"`
	TokenEndpoint string              `mapstructure:"token_endpoint" validate:"required,url"`
	SyndicateTo   []SyndicationTarget `mapstructure:"syndicate_to" validate:"dive"`
}

type SyndicationTarget struct {
	Uid     string             `mapstructure:"uid" json:"uid" validate:"required"`
	Name    string             `mapstructure:"name" json:"name" validate:"required"`
	Service SyndicationService `mapstructure:"service" json:"service"`
}

type SyndicationService struct {
	Name  string `mapstructure:"name" json:"name"`
	Url   string `mapstructure:"url" json:"url"`
	Photo string `mapstructure:"photo" json:"photo"`
}

type Content struct {
	Strategy   string                     `mapstructure:"strategy" validate:"required,oneof=noop sql filesystem git d1"`
	Sql        *SQLContentStrategy        `mapstructure:"sql" validate:"required_if=Strategy sql"`
	Filesystem *FilesystemContentStrategy `mapstructure:"filesystem" validate:"required_if=Strategy filesystem"`
	Git        *GitContentStrategy        `mapstructure:"git" validate:"required_if=Strategy git"`
	D1         *D1ContentStrategy         `mapstructure:"d1" validate:"required_if=Strategy d1"`
}

type SQLContentStrategy struct {
	Driver      string  `mapstructure:"driver" validate:"required,oneof=postgres mysql sqlite"`
	DSN         string  `mapstructure:"dsn" validate:"required"`
	TablePrefix *string `mapstructure:"table_prefix"`
	PublicUrl   string  `mapstructure:"public_url" validate:"required,url"`
}

type FilesystemContentStrategy struct {
	Path        string `mapstructure:"path" validate:"required,abspath"`
	PathPattern string `mapstructure:"path_pattern"`
	PublicUrl   string `mapstructure:"public_url" validate:"required,url"`
}

type GitContentStrategy struct {
	Repository string                 `mapstructure:"repository" validate:"required"`
	Path       string                 `mapstructure:"path" validate:"required"`
	Branch     string                 `mapstructure:"branch"`
	PublicUrl  string                 `mapstructure:"public_url" validate:"required,url"`
	Auth       GitContentStrategyAuth `mapstructure:"auth"`
}

type GitContentStrategyAuth struct {
	Method string                `mapstructure:"method" validate:"required,oneof=plain ssh"`
	Plain  *UsernamePasswordAuth `mapstructure:"plain" validate:"required_if=Method plain"`
	Ssh    *SshKeyAuth           `mapstructure:"ssh" validate:"required_if=Method ssh"`
}

type UsernamePasswordAuth struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
}

type SshKeyAuth struct {
	Username           string `mapstructure:"username"`
	PrivateKeyFilePath string `mapstructure:"private_key_file_path" validate:"required,file"`
	Passphrase         string `mapstructure:"passphrase"`
}

type D1ContentStrategy struct {
	AccountID   string  `mapstructure:"account_id" validate:"required"`
	DatabaseID  string  `mapstructure:"database_id" validate:"required"`
	APIToken    string  `mapstructure:"api_token" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint"`
	TablePrefix *string `mapstructure:"table_prefix"`
	PublicUrl   string  `mapstructure:"public_url" validate:"required,url"`
}

type Media struct {
	Strategy   string                   `mapstructure:"strategy" validate:"required,oneof=noop filesystem s3"`
	Filesystem *FilesystemMediaStrategy `mapstructure:"filesystem" validate:"required_if=Strategy filesystem"`
	S3         *S3MediaStrategy         `mapstructure:"s3" validate:"required_if=Strategy s3"`
}

type FilesystemMediaStrategy struct {
	Path        string `mapstructure:"path" validate:"required,abspath"`
	PathPattern string `mapstructure:"path_pattern"`
	PublicUrl   string `mapstructure:"public_url" validate:"required,url"`
}

type S3MediaStrategy struct {
	AccessKeyId   string `mapstructure:"access_key_id" validate:"required"`
	SecretKeyId   string `mapstructure:"secret_key_id" validate:"required"`
	Region        string `mapstructure:"region" validate:"required"`
	Bucket        string `mapstructure:"bucket" validate:"required"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseUrl string `mapstructure:"public_base_url" validate:"required,url"`
}
