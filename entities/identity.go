package entities

type Identity struct {
	Nickname string `yaml:"nickname"`
	Password string `yaml:"password"`
	Realname string `yaml:"realname"`
}
