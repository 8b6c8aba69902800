// Package game 實作卡牌遊戲的帳號、卡包、牌組與交易規則
package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CardType 卡片種類
type CardType string

const (
	CardTypeMonster CardType = "Monster"
	CardTypeSpell   CardType = "Spell"
)

// ParseCardType 不分大小寫解析卡片種類
func ParseCardType(s string) (CardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monster":
		return CardTypeMonster, nil
	case "spell":
		return CardTypeSpell, nil
	default:
		return "", fmt.Errorf("unknown card type %q", s)
	}
}

// UnmarshalText 接受任意大小寫
func (t *CardType) UnmarshalText(b []byte) error {
	v, err := ParseCardType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Element 卡片屬性
type Element string

const (
	ElementNormal Element = "Normal"
	ElementFire   Element = "Fire"
	ElementWater  Element = "Water"
)

// ParseElement 不分大小寫解析屬性，"regular" 視為 Normal
func ParseElement(s string) (Element, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "regular":
		return ElementNormal, nil
	case "fire":
		return ElementFire, nil
	case "water":
		return ElementWater, nil
	default:
		return "", fmt.Errorf("unknown element %q", s)
	}
}

// UnmarshalText 接受任意大小寫
func (e *Element) UnmarshalText(b []byte) error {
	v, err := ParseElement(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ClassifyCard 由卡名推導種類與屬性，例如 "WaterSpell"、"FireElf"、"Dragon"
func ClassifyCard(name string) (CardType, Element) {
	t := CardTypeMonster
	if strings.HasSuffix(name, "Spell") {
		t = CardTypeSpell
	}
	e := ElementNormal
	switch {
	case strings.HasPrefix(name, "Water"):
		e = ElementWater
	case strings.HasPrefix(name, "Fire"):
		e = ElementFire
	}
	return t, e
}

// 卡片預設值
const (
	DefaultCritChance  = 0.1
	DefaultDescription = "NO CARD DESCRIPTION"
)

// Card 卡片
type Card struct {
	ID          string   `json:"Id"`
	Name        string   `json:"Name"`
	Type        CardType `json:"Type"`
	Element     Element  `json:"Element"`
	Damage      float64  `json:"Damage"`
	CritChance  float64  `json:"CritChance"`
	Description string   `json:"Description"`
}

// UnmarshalJSON 同時接受 "Id" 與 "Guid" 作為卡片 ID
func (c *Card) UnmarshalJSON(b []byte) error {
	type plain Card
	var aux struct {
		plain
		Guid string `json:"Guid"`
	}
	aux.CritChance = -1
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Card(aux.plain)
	if c.ID == "" {
		c.ID = aux.Guid
	}
	return nil
}

// normalize 補上缺少的種類、屬性與預設值
func (c *Card) normalize() {
	t, e := ClassifyCard(c.Name)
	if c.Type == "" {
		c.Type = t
	}
	if c.Element == "" {
		c.Element = e
	}
	if c.CritChance < 0 {
		c.CritChance = DefaultCritChance
	}
	if c.Description == "" {
		c.Description = DefaultDescription
	}
}

// Player 玩家帳號
type Player struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Bio          string
	Image        string
	Coins        int
	Elo          int
	Wins         int
	Losses       int
	// Token 目前有效的 session token，未登入為空字串
	Token string
}

// Credentials 註冊與登入的請求內容
type Credentials struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// Profile 可公開與修改的玩家資料
type Profile struct {
	Name  string `json:"Name"`
	Bio   string `json:"Bio"`
	Image string `json:"Image"`
}

// Stats 玩家戰績
type Stats struct {
	Name    string  `json:"Name"`
	Elo     int     `json:"Elo"`
	Wins    int     `json:"Wins"`
	Losses  int     `json:"Losses"`
	WinRate float64 `json:"WinRate"`
}

// StatsOf 由玩家資料計算戰績，勝率為百分比
func StatsOf(p *Player) Stats {
	s := Stats{
		Name:   p.Name,
		Elo:    p.Elo,
		Wins:   p.Wins,
		Losses: p.Losses,
	}
	if games := p.Wins + p.Losses; games > 0 {
		s.WinRate = float64(p.Wins) / float64(games) * 100
	}
	return s
}

// TradingDeal 交易提案：提供 CardToTrade，要求指定種類且傷害不低於 MinimumDamage 的卡
type TradingDeal struct {
	ID            string   `json:"Id"`
	CardToTrade   string   `json:"CardToTrade"`
	Type          CardType `json:"Type"`
	MinimumDamage float64  `json:"MinimumDamage"`
	Owner         string   `json:"-"`
}

// TradeResult 交易完成後雙方取得的卡
type TradeResult struct {
	DealID   string
	Seller   string
	Buyer    string
	Received Card // 買方取得的卡
	Given    Card // 賣方取得的卡
}
