package scraper

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/idus-tools/product-translator/internal/models"
)

// revealState drives the interactive option harvest:
// Idle → TriggerSearch → PanelOpen → ValueHarvest → (NextGroupAdvance | Done) → Closed.
type revealState int

const (
	stateIdle revealState = iota
	stateTriggerSearch
	statePanelOpen
	stateValueHarvest
	stateNextGroupAdvance
	stateDone
	stateClosed
)

const (
	maxOptionGroups   = 6
	maxOptionValueLen = 80
	maxGroupNameLen   = 30
)

var (
	optionTriggerSelectors = []string{
		`button:has-text("옵션을 선택해주세요")`,
		`button:has-text("옵션 선택")`,
		`[class*="option-select"]`,
		`[class*="optionSelect"]`,
		`[class*="option"] button`,
		`button:has-text("구매하기")`,
	}

	optionNoiseKeywords = []string{
		"선택해주세요", "선택하세요", "확인", "취소", "닫기",
		"장바구니", "구매하기", "필수", "총 상품금액",
		"배송비", "수량", "품절", "옵션을", "로그인",
	}

	numberedHeaderPattern = regexp.MustCompile(`^(\d+)\.\s*(.+?)\s*$`)
	requiredTagPattern    = regexp.MustCompile(`\s*\(필수\)\s*$`)
	priceOnlyPattern      = regexp.MustCompile(`^[\d,]+\s*원?$`)
	priceSuffixPattern    = regexp.MustCompile(`\s*[\(\[]?[+\-]?[\d,]+\s*원[\)\]]?\s*$`)

	fallbackOptionPattern = regexp.MustCompile(`([\p{Hangul}A-Za-z][\p{Hangul}A-Za-z ]{0,20}선택)\s*[:：]\s*([\p{Hangul}A-Za-z0-9 \(\)\[\]]{1,60})`)
)

// optionRevealer harvests option values that only materialize after
// interaction. Multi-group UIs require selecting one group's value before the
// next becomes interactive, so the revealer deliberately mutates page state;
// Closed always dismisses the panel to restore the page for later phases.
type optionRevealer struct {
	clickSettle time.Duration
	logger      *slog.Logger
}

func newOptionRevealer(clickSettle time.Duration, logger *slog.Logger) *optionRevealer {
	return &optionRevealer{
		clickSettle: clickSettle,
		logger:      logger.With("extractor", "options"),
	}
}

// Reveal runs the state machine against the page. An empty result is valid:
// pages without options are common.
func (r *optionRevealer) Reveal(page playwright.Page) []models.OptionGroup {
	var groups []models.OptionGroup
	state := stateIdle
	currentGroup := 0

	for state != stateClosed {
		switch state {
		case stateIdle:
			state = stateTriggerSearch

		case stateTriggerSearch:
			if !r.clickTrigger(page) {
				state = stateDone
				break
			}
			time.Sleep(r.clickSettle)
			state = statePanelOpen

		case statePanelOpen:
			if r.panelText(page) == "" {
				r.logger.Debug("no option panel revealed")
				state = stateDone
				break
			}
			state = stateValueHarvest

		case stateValueHarvest:
			harvested := ParsePanelText(r.panelText(page))
			groups = mergeGroups(groups, harvested)

			if currentGroup < len(harvested) && len(harvested[currentGroup].Values) == 0 {
				// Collapsed group header: force reveal then re-harvest once.
				r.clickHeader(page, harvested[currentGroup].Name)
				time.Sleep(r.clickSettle)
				groups = mergeGroups(groups, ParsePanelText(r.panelText(page)))
			}

			if currentGroup+1 < groupCount(page, groups) && currentGroup+1 < maxOptionGroups {
				state = stateNextGroupAdvance
			} else {
				state = stateDone
			}

		case stateNextGroupAdvance:
			// Selecting the first value of the current group unlocks the next
			// group. Later groups simply missing is a partial, valid result.
			if currentGroup >= len(groups) || len(groups[currentGroup].Values) == 0 {
				state = stateDone
				break
			}
			if !r.clickText(page, groups[currentGroup].Values[0]) {
				state = stateDone
				break
			}
			time.Sleep(r.clickSettle)
			currentGroup++
			state = stateValueHarvest

		case stateDone:
			r.dismiss(page)
			state = stateClosed
		}
	}

	if len(groups) == 0 {
		groups = r.fallbackFromFreeText(page)
	}

	r.logger.Info("option harvest finished", "groups", len(groups))
	return groups
}

func (r *optionRevealer) clickTrigger(page playwright.Page) bool {
	for _, selector := range optionTriggerSelectors {
		loc := page.Locator(selector).First()
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := loc.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(3000),
		}); err != nil {
			r.logger.Debug("trigger click failed", "selector", selector, "error", err)
			continue
		}
		return true
	}
	return false
}

// panelText returns the visible text of the revealed dialog/listbox/sheet
// container. Scoping to the panel keeps unrelated page text out of the
// harvest.
func (r *optionRevealer) panelText(page playwright.Page) string {
	text, err := evaluateString(page, `() => {
		const panels = document.querySelectorAll(
			'[role="dialog"], [role="listbox"], [role="menu"], ' +
			'[class*="bottom-sheet"], [class*="bottomSheet"], ' +
			'[class*="option-panel"], [class*="optionPanel"], ' +
			'[class*="option-list"], [class*="optionList"], ' +
			'[class*="dropdown"], [class*="modal"], [class*="drawer"]'
		);
		for (const panel of panels) {
			const rect = panel.getBoundingClientRect();
			if (rect.width < 50 || rect.height < 50) continue;
			const text = panel.innerText || '';
			if (text.trim()) return text;
		}
		return '';
	}`)
	if err != nil {
		return ""
	}
	return text
}

func (r *optionRevealer) clickText(page playwright.Page, text string) bool {
	return r.click(page, exactTextSelector(text), text)
}

// clickHeader matches by substring: the rendered header still carries the
// numbering and required tag that parsing strips from the group name.
func (r *optionRevealer) clickHeader(page playwright.Page, name string) bool {
	return r.click(page, substringTextSelector(name), name)
}

func (r *optionRevealer) click(page playwright.Page, selector, label string) bool {
	loc := page.Locator(selector).First()
	if err := loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2000),
	}); err != nil {
		r.logger.Debug("text click failed", "text", label, "error", err)
		return false
	}
	return true
}

// exactTextSelector matches the element text exactly; option values appear
// verbatim in the panel.
func exactTextSelector(text string) string {
	return fmt.Sprintf(`text=%q`, text)
}

// substringTextSelector matches anywhere in the element text.
func substringTextSelector(text string) string {
	return "text=" + text
}

// groupCount reads the explicit group counter the UI exposes through numbered
// headers; falls back to what has been harvested so far.
func groupCount(page playwright.Page, groups []models.OptionGroup) int {
	count := len(groups)
	result, err := page.Evaluate(`() => {
		const lines = (document.body.innerText || '').split('\n');
		let max = 0;
		for (const line of lines) {
			const m = line.trim().match(/^(\d+)\.\s*\S/);
			if (m) max = Math.max(max, parseInt(m[1], 10));
		}
		return max;
	}`)
	if err == nil {
		if n, ok := result.(int); ok && n > count {
			count = n
		}
		if f, ok := result.(float64); ok && int(f) > count {
			count = int(f)
		}
	}
	if count > maxOptionGroups {
		count = maxOptionGroups
	}
	return count
}

// dismiss always runs, regardless of harvest outcome, so the panel does not
// sit over the page during image collection.
func (r *optionRevealer) dismiss(page playwright.Page) {
	if err := page.Keyboard().Press("Escape"); err != nil {
		r.logger.Debug("panel dismiss failed", "error", err)
	}
	time.Sleep(r.clickSettle / 3)
}

// fallbackFromFreeText scans accumulated page text (feedback sections repeat
// purchased options as "group: value") when the interactive harvest yielded
// nothing. Lower confidence than the panel harvest.
func (r *optionRevealer) fallbackFromFreeText(page playwright.Page) []models.OptionGroup {
	text, err := evaluateString(page, `() => document.body.innerText || ''`)
	if err != nil || text == "" {
		return nil
	}
	groups := ParseFallbackText(text)
	if len(groups) > 0 {
		r.logger.Info("options recovered from free text", "groups", len(groups))
	}
	return groups
}

// ParsePanelText parses the option panel's visible text into groups. Group
// headers are numbered lines ("1. 쿠키 선택 (필수)") or lines naming a
// selection; following lines are values until the next header.
func ParsePanelText(text string) []models.OptionGroup {
	var groups []models.OptionGroup
	index := map[string]int{}
	current := -1

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if name, ok := parseGroupHeader(line); ok {
			if i, exists := index[name]; exists {
				current = i
			} else {
				groups = append(groups, models.OptionGroup{Name: name})
				current = len(groups) - 1
				index[name] = current
			}
			continue
		}

		if current < 0 {
			continue
		}
		if value, ok := parseOptionValue(line); ok {
			groups[current].Values = append(groups[current].Values, value)
		}
	}

	for i := range groups {
		groups[i].Values = dedupeValues(groups[i].Values)
	}
	return groups
}

func parseGroupHeader(line string) (string, bool) {
	if m := numberedHeaderPattern.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(requiredTagPattern.ReplaceAllString(m[2], ""))
		if lengthBetween(name, 1, maxGroupNameLen) && !strings.Contains(name, "원") && !strings.Contains(name, "구매") {
			return name, true
		}
		return "", false
	}

	if strings.Contains(line, "선택") && !strings.Contains(line, "선택해") {
		name := strings.TrimSpace(requiredTagPattern.ReplaceAllString(line, ""))
		if lengthBetween(name, 2, maxGroupNameLen) && !strings.Contains(name, "원") && !strings.Contains(name, "구매") {
			return name, true
		}
	}
	return "", false
}

func parseOptionValue(line string) (string, bool) {
	if len([]rune(line)) > maxOptionValueLen {
		return "", false
	}
	for _, noise := range optionNoiseKeywords {
		if strings.Contains(line, noise) {
			return "", false
		}
	}
	if priceOnlyPattern.MatchString(line) {
		return "", false
	}

	// Trailing surcharge ("(+2,000원)") belongs to the price, not the value.
	value := strings.TrimSpace(priceSuffixPattern.ReplaceAllString(line, ""))
	if value == "" {
		return "", false
	}
	return value, true
}

// ParseFallbackText synthesizes groups from repeated "group 선택: value"
// matches in free text.
func ParseFallbackText(text string) []models.OptionGroup {
	var groups []models.OptionGroup
	index := map[string]int{}

	for _, m := range fallbackOptionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		value := strings.TrimSpace(strings.Join(strings.Fields(m[2]), " "))
		if !lengthBetween(name, 2, maxGroupNameLen) || value == "" {
			continue
		}

		i, exists := index[name]
		if !exists {
			groups = append(groups, models.OptionGroup{Name: name})
			i = len(groups) - 1
			index[name] = i
		}
		groups[i].Values = append(groups[i].Values, value)
	}

	for i := range groups {
		groups[i].Values = dedupeValues(groups[i].Values)
	}
	return groups
}

// dedupeValues trims values, drops empties and keeps the first occurrence of
// each value in order.
func dedupeValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// mergeGroups unions a re-harvest into the accumulated groups, keeping group
// order and order-preserving value dedupe.
func mergeGroups(accumulated, harvested []models.OptionGroup) []models.OptionGroup {
	index := map[string]int{}
	for i, g := range accumulated {
		index[g.Name] = i
	}

	for _, g := range harvested {
		if i, ok := index[g.Name]; ok {
			accumulated[i].Values = dedupeValues(append(accumulated[i].Values, g.Values...))
			continue
		}
		accumulated = append(accumulated, models.OptionGroup{
			Name:   g.Name,
			Values: dedupeValues(g.Values),
		})
		index[g.Name] = len(accumulated) - 1
	}
	return accumulated
}
