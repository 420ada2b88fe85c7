// Package querybuilder はクエリパラメータからフィルタ、検索、ソート、
// フィールド選択、ページネーションを組み立てるSQLビルダーを提供する。
//
// 使用可能なカラムはTableで許可リストとして宣言し、未知のキーは無視する。
// 値は常にプレースホルダで渡し、SQL文字列に連結しない。
package querybuilder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// 予約済みのクエリパラメータ名。フィルタ対象から除外される。
const (
	ParamSearchTerm = "searchTerm"
	ParamSort       = "sort"
	ParamFields     = "fields"
	ParamPage       = "page"
	ParamLimit      = "limit"
)

const (
	// DefaultPage はpage未指定時のページ番号。
	DefaultPage = 1
	// DefaultLimit はlimit未指定時の1ページあたりの件数。
	DefaultLimit = 10
	// MaxLimit はlimitの上限。
	MaxLimit = 100
)

// ErrInvalidParam はクエリパラメータの値が解釈できない場合のエラー。
var ErrInvalidParam = errors.New("invalid query parameter")

// Kind はカラムの値の型を表す。
type Kind int

const (
	// KindString は文字列カラム。
	KindString Kind = iota
	// KindBool は真偽値カラム。
	KindBool
	// KindTime は日時カラム。フィルタには使用しない。
	KindTime
)

// Column はクエリキーに対応するカラム定義。
type Column struct {
	Name       string // SQL上のカラム名
	Kind       Kind
	Filterable bool // 等価フィルタに使用できるか
}

// Table はビルダーが扱うテーブルの定義。
// Columnsのキーはクエリパラメータ上の名前（例: isActive）。
type Table struct {
	Name        string
	Key         string            // 常にSELECTされる主キーのクエリ名
	Columns     map[string]Column // 許可リスト。ここに無いカラムは参照できない
	Order       []string          // SELECT句の既定の並び順（クエリ名）
	DefaultSort string            // sort未指定時のソート指定（例: -createdAt）
}

// Executor はビルダーがクエリを実行するためのインターフェース。
// *sqlx.DBがこれを満たす。
type Executor interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Meta はページネーションのメタ情報を表す。
type Meta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"totalPage"`
}

// Builder はクエリパラメータからSELECT文を組み立てる。
// Filter→Search→Sort→Fields→Paginateの順に組み立てた後、
// BuildとMetaは並行に呼び出してよい。
type Builder[T any] struct {
	db     Executor
	table  Table
	params map[string]string

	where   []string
	args    []interface{}
	orderBy []string
	columns []string
	page    int
	limit   int
	err     error
}

// New はBuilderを生成する。paramsはリクエストのクエリパラメータ。
func New[T any](db Executor, table Table, params map[string]string) *Builder[T] {
	if params == nil {
		params = map[string]string{}
	}
	return &Builder[T]{
		db:     db,
		table:  table,
		params: params,
		page:   DefaultPage,
		limit:  DefaultLimit,
	}
}

// Filter は予約済み以外のパラメータを等価条件としてWHERE句に追加する。
// フィルタ不可または未知のキーは無視する。
func (b *Builder[T]) Filter() *Builder[T] {
	keys := sortedKeys(b.params)
	for _, key := range keys {
		if isReserved(key) {
			continue
		}
		col, ok := b.table.Columns[key]
		if !ok || !col.Filterable {
			continue
		}

		raw := b.params[key]
		var value interface{} = raw
		if col.Kind == KindBool {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				b.setErr(fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, raw))
				continue
			}
			value = v
		}

		b.args = append(b.args, value)
		b.where = append(b.where, fmt.Sprintf("%s = $%d", col.Name, len(b.args)))
	}
	return b
}

// Search はsearchTermを指定フィールドの部分一致（大文字小文字を区別しない）としてWHERE句に追加する。
func (b *Builder[T]) Search(fields []string) *Builder[T] {
	term := strings.TrimSpace(b.params[ParamSearchTerm])
	if term == "" || len(fields) == 0 {
		return b
	}

	b.args = append(b.args, "%"+escapeLike(term)+"%")
	placeholder := fmt.Sprintf("$%d", len(b.args))

	var conds []string
	for _, f := range fields {
		col, ok := b.table.Columns[f]
		if !ok || col.Kind != KindString {
			continue
		}
		conds = append(conds, fmt.Sprintf("%s ILIKE %s", col.Name, placeholder))
	}
	if len(conds) == 0 {
		b.args = b.args[:len(b.args)-1]
		return b
	}
	b.where = append(b.where, "("+strings.Join(conds, " OR ")+")")
	return b
}

// Sort はsortパラメータ（カンマ区切り、先頭の-で降順）をORDER BY句に変換する。
func (b *Builder[T]) Sort() *Builder[T] {
	sortParam := b.params[ParamSort]
	if strings.TrimSpace(sortParam) == "" {
		sortParam = b.table.DefaultSort
	}

	b.orderBy = nil
	for _, part := range splitList(sortParam) {
		dir := "ASC"
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			part = part[1:]
		}
		col, ok := b.table.Columns[part]
		if !ok {
			continue
		}
		b.orderBy = append(b.orderBy, col.Name+" "+dir)
	}
	return b
}

// Fields はfieldsパラメータをSELECT句のカラムに変換する。
// 全要素が-で始まる場合はそれらを除外した全カラムを選択する。主キーは常に含める。
func (b *Builder[T]) Fields() *Builder[T] {
	parts := splitList(b.params[ParamFields])

	exclude := len(parts) > 0
	for _, p := range parts {
		if !strings.HasPrefix(p, "-") {
			exclude = false
			break
		}
	}

	selected := map[string]bool{b.table.Key: true}
	switch {
	case len(parts) == 0:
		for _, key := range b.table.Order {
			selected[key] = true
		}
	case exclude:
		excluded := map[string]bool{}
		for _, p := range parts {
			excluded[p[1:]] = true
		}
		for _, key := range b.table.Order {
			if !excluded[key] {
				selected[key] = true
			}
		}
	default:
		for _, p := range parts {
			if _, ok := b.table.Columns[p]; ok {
				selected[p] = true
			}
		}
	}

	b.columns = nil
	for _, key := range b.table.Order {
		if selected[key] {
			b.columns = append(b.columns, b.table.Columns[key].Name)
		}
	}
	return b
}

// Paginate はpageとlimitからLIMIT/OFFSETを決定する。
// 数値でない値や範囲外の値は既定値または上限に丸める。
// OFFSETがintに収まらないpageはErrInvalidParamとする。
func (b *Builder[T]) Paginate() *Builder[T] {
	b.page = parsePositive(b.params[ParamPage], DefaultPage)
	b.limit = parsePositive(b.params[ParamLimit], DefaultLimit)
	if b.limit > MaxLimit {
		b.limit = MaxLimit
	}
	if b.page > math.MaxInt/b.limit {
		b.setErr(fmt.Errorf("%w: %s=%q", ErrInvalidParam, ParamPage, b.params[ParamPage]))
		b.page = DefaultPage
	}
	return b
}

// SelectSQL は組み立て済みのSELECT文と引数を返す。
func (b *Builder[T]) SelectSQL() (string, []interface{}) {
	columns := b.columns
	if len(columns) == 0 {
		for _, key := range b.table.Order {
			columns = append(columns, b.table.Columns[key].Name)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table.Name)
	b.writeWhere(&sb)
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	args := append([]interface{}{}, b.args...)
	args = append(args, b.limit, (b.page-1)*b.limit)
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return sb.String(), args
}

// CountSQL はフィルタと検索条件に一致する件数を数えるSQLと引数を返す。
func (b *Builder[T]) CountSQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(b.table.Name)
	b.writeWhere(&sb)
	return sb.String(), append([]interface{}{}, b.args...)
}

// Build はクエリを実行し結果を返す。
func (b *Builder[T]) Build(ctx context.Context) ([]T, error) {
	if b.err != nil {
		return nil, b.err
	}
	query, args := b.SelectSQL()

	rows := []T{}
	if err := b.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", b.table.Name, err)
	}
	return rows, nil
}

// Meta は条件に一致する総件数とページ情報を返す。
func (b *Builder[T]) Meta(ctx context.Context) (Meta, error) {
	if b.err != nil {
		return Meta{}, b.err
	}
	query, args := b.CountSQL()

	var total int64
	if err := b.db.GetContext(ctx, &total, query, args...); err != nil {
		return Meta{}, fmt.Errorf("failed to count %s: %w", b.table.Name, err)
	}

	return Meta{
		Page:      b.page,
		Limit:     b.limit,
		Total:     total,
		TotalPage: int(math.Ceil(float64(total) / float64(b.limit))),
	}, nil
}

func (b *Builder[T]) writeWhere(sb *strings.Builder) {
	if len(b.where) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(b.where, " AND "))
}

func (b *Builder[T]) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func isReserved(key string) bool {
	switch key {
	case ParamSearchTerm, ParamSort, ParamFields, ParamPage, ParamLimit:
		return true
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositive(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
