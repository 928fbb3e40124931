package config

import (
	"os"
	"path"

	"github.com/abcfe/abcfe-keyring/common/utils"
	"github.com/naoina/toml"
)

const (
	DefaultUnlockTimeoutSec   = 60 * 5
	DefaultTxConfigTimeoutSec = 60 * 5
	DefaultSignTimeoutSec     = 60 * 5

	// scrypt parameters of the standard keystore v3 profile
	DefaultScryptN = 1 << 18
	DefaultScryptP = 1
)

type Common struct {
	Level       string // local, dev, prod
	ServiceName string
}

type LogInfo struct {
	Path       string
	MaxAgeHour int
	RotateHour int
}

type DB struct {
	Path string
}

type Server struct {
	Host     string `toml:"Host"`
	RestPort int    `toml:"RestPort"`
}

// Keystore 마스터 시크릿 암호화 파라미터
type Keystore struct {
	ScryptN int `toml:"ScryptN"`
	ScryptP int `toml:"ScryptP"`
}

// Approval 승인 요청 만료 시간 (초)
type Approval struct {
	UnlockTimeoutSec   int `toml:"UnlockTimeoutSec"`
	TxConfigTimeoutSec int `toml:"TxConfigTimeoutSec"`
	SignTimeoutSec     int `toml:"SignTimeoutSec"`
}

// Chain 체인 메타데이터와 접근 허용 origin 목록
type Chain struct {
	ChainID       string   `toml:"ChainID"`
	ChainName     string   `toml:"ChainName"`
	CoinType      uint32   `toml:"CoinType"`
	Bech32Prefix  string   `toml:"Bech32Prefix"`
	AccessOrigins []string `toml:"AccessOrigins"`
}

type Config struct {
	Common   Common
	LogInfo  LogInfo
	DB       DB
	Server   Server
	Keystore Keystore
	Approval Approval
	Chains   []Chain
}

func NewConfig(filepath string) (*Config, error) {
	if filepath == "" {
		workDir, _ := os.Getwd()
		rootDir := utils.FindProjectRoot(workDir)
		filepath = path.Join(rootDir, "config", "config.toml")
	}

	if file, err := os.Open(filepath); err != nil {
		return nil, err
	} else {
		defer file.Close()

		c := new(Config)
		if err := toml.NewDecoder(file).Decode(c); err != nil {
			return nil, err
		} else {
			c.sanitize()
			return c, nil
		}
	}
}

func (p *Config) sanitize() {
	if len(p.LogInfo.Path) > 0 && p.LogInfo.Path[0] == byte('~') {
		p.LogInfo.Path = path.Join(utils.HomeDir(), p.LogInfo.Path[1:])
	}
	if len(p.DB.Path) > 0 && p.DB.Path[0] == byte('~') {
		p.DB.Path = path.Join(utils.HomeDir(), p.DB.Path[1:])
	}

	if p.Server.Host == "" {
		p.Server.Host = "127.0.0.1"
	}

	if p.Keystore.ScryptN <= 0 {
		p.Keystore.ScryptN = DefaultScryptN
	}
	if p.Keystore.ScryptP <= 0 {
		p.Keystore.ScryptP = DefaultScryptP
	}

	if p.Approval.UnlockTimeoutSec <= 0 {
		p.Approval.UnlockTimeoutSec = DefaultUnlockTimeoutSec
	}
	if p.Approval.TxConfigTimeoutSec <= 0 {
		p.Approval.TxConfigTimeoutSec = DefaultTxConfigTimeoutSec
	}
	if p.Approval.SignTimeoutSec <= 0 {
		p.Approval.SignTimeoutSec = DefaultSignTimeoutSec
	}

	if len(p.Chains) == 0 {
		p.Chains = []Chain{DefaultChain()}
	}
}

// DefaultChain cosmoshub-4 (BIP-44 coin type 118)
func DefaultChain() Chain {
	return Chain{
		ChainID:      "cosmoshub-4",
		ChainName:    "Cosmos Hub",
		CoinType:     118,
		Bech32Prefix: "cosmos",
	}
}
