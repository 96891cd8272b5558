package service

import (
	"net"
	"strconv"
	"time"

	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/database/model"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/common"
	"github.com/sheetplot/sheetplot/util/random"

	"gorm.io/gorm"
)

var defaultValueMap = map[string]string{
	"webListen":      "",
	"webPort":        "8080",
	"webCertFile":    "",
	"webKeyFile":     "",
	"secret":         random.Seq(32),
	"sessionMaxAge":  "0",
	"rememberMaxAge": "43200",
	"timeLocation":   "UTC",
	"memThreshold":   "90",
}

// AllSetting is the flattened view of every runtime setting.
type AllSetting struct {
	WebListen      string `json:"webListen"`
	WebPort        int    `json:"webPort"`
	WebCertFile    string `json:"webCertFile"`
	WebKeyFile     string `json:"webKeyFile"`
	SessionMaxAge  int    `json:"sessionMaxAge"`  // minutes, 0 keeps the cookie for the browser session
	RememberMaxAge int    `json:"rememberMaxAge"` // minutes used when "remember me" is ticked
	TimeLocation   string `json:"timeLocation"`
	MemThreshold   int    `json:"memThreshold"` // percent, 0 disables the memory check
}

// CheckValid validates the values a user may change from the CLI.
func (s *AllSetting) CheckValid() error {
	if s.WebListen != "" && net.ParseIP(s.WebListen) == nil {
		return common.NewError("web listen is not valid ip: ", s.WebListen)
	}
	if s.WebPort <= 0 || s.WebPort > 65535 {
		return common.NewError("web port is not a valid port: ", s.WebPort)
	}
	if (s.WebCertFile == "") != (s.WebKeyFile == "") {
		return common.NewError("cert file and key file must be set together")
	}
	if s.SessionMaxAge < 0 || s.RememberMaxAge < 0 {
		return common.NewError("session max age cannot be negative")
	}
	if s.MemThreshold < 0 || s.MemThreshold > 100 {
		return common.NewError("memory threshold must be between 0 and 100: ", s.MemThreshold)
	}
	if _, err := time.LoadLocation(s.TimeLocation); err != nil {
		return common.NewError("time location not exist: ", s.TimeLocation)
	}
	return nil
}

// SettingService stores runtime settings as key/value rows, falling back to
// defaultValueMap for keys that were never saved.
type SettingService struct {
	db *gorm.DB
}

func NewSettingService(db *gorm.DB) *SettingService {
	return &SettingService{db: db}
}

func (s *SettingService) GetAllSetting() (*AllSetting, error) {
	all := &AllSetting{}
	var err error
	if all.WebListen, err = s.GetListen(); err != nil {
		return nil, err
	}
	if all.WebPort, err = s.GetPort(); err != nil {
		return nil, err
	}
	if all.WebCertFile, err = s.GetCertFile(); err != nil {
		return nil, err
	}
	if all.WebKeyFile, err = s.GetKeyFile(); err != nil {
		return nil, err
	}
	if all.SessionMaxAge, err = s.GetSessionMaxAge(); err != nil {
		return nil, err
	}
	if all.RememberMaxAge, err = s.GetRememberMaxAge(); err != nil {
		return nil, err
	}
	if all.TimeLocation, err = s.getString("timeLocation"); err != nil {
		return nil, err
	}
	if all.MemThreshold, err = s.GetMemThreshold(); err != nil {
		return nil, err
	}
	return all, nil
}

// ResetSettings drops every saved value, including the session secret.
func (s *SettingService) ResetSettings() error {
	return s.db.Where("1 = 1").Delete(model.Setting{}).Error
}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	setting := &model.Setting{}
	err := s.db.Model(model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		return s.db.Create(&model.Setting{
			Key:   key,
			Value: value,
		}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return s.db.Save(setting).Error
}

func (s *SettingService) getString(key string) (string, error) {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		value, ok := defaultValueMap[key]
		if !ok {
			return "", common.NewErrorf("key <%v> not in defaultValueMap", key)
		}
		return value, nil
	} else if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) getInt(key string) (int, error) {
	str, err := s.getString(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(str)
}

func (s *SettingService) setInt(key string, value int) error {
	return s.saveSetting(key, strconv.Itoa(value))
}

func (s *SettingService) GetListen() (string, error) {
	return s.getString("webListen")
}

func (s *SettingService) SetListen(ip string) error {
	return s.saveSetting("webListen", ip)
}

func (s *SettingService) GetPort() (int, error) {
	return s.getInt("webPort")
}

func (s *SettingService) SetPort(port int) error {
	return s.setInt("webPort", port)
}

func (s *SettingService) GetCertFile() (string, error) {
	return s.getString("webCertFile")
}

func (s *SettingService) GetKeyFile() (string, error) {
	return s.getString("webKeyFile")
}

// SetCert stores the TLS key pair paths. Empty paths serve plain HTTP.
func (s *SettingService) SetCert(certFile, keyFile string) error {
	if err := s.saveSetting("webCertFile", certFile); err != nil {
		return err
	}
	return s.saveSetting("webKeyFile", keyFile)
}

func (s *SettingService) GetSessionMaxAge() (int, error) {
	return s.getInt("sessionMaxAge")
}

func (s *SettingService) GetRememberMaxAge() (int, error) {
	return s.getInt("rememberMaxAge")
}

func (s *SettingService) SetRememberMaxAge(minutes int) error {
	return s.setInt("rememberMaxAge", minutes)
}

func (s *SettingService) GetMemThreshold() (int, error) {
	return s.getInt("memThreshold")
}

func (s *SettingService) SetMemThreshold(percent int) error {
	return s.setInt("memThreshold", percent)
}

// GetSecret returns the session signing key. The generated default is
// persisted on first use so sessions survive restarts.
func (s *SettingService) GetSecret() ([]byte, error) {
	secret, err := s.getString("secret")
	if err != nil {
		return nil, err
	}
	if secret == defaultValueMap["secret"] {
		if err := s.saveSetting("secret", secret); err != nil {
			logger.Warning("save secret failed:", err)
		}
	}
	return []byte(secret), nil
}

func (s *SettingService) GetTimeLocation() (*time.Location, error) {
	l, err := s.getString("timeLocation")
	if err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(l)
	if err != nil {
		defaultLocation := defaultValueMap["timeLocation"]
		logger.Errorf("location <%v> not exist, using default location: %v", l, defaultLocation)
		return time.LoadLocation(defaultLocation)
	}
	return location, nil
}
