package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc 与 os.LookupEnv 同签名，测试时可替换
type lookupFunc func(key string) (string, bool)

var durationType = reflect.TypeOf(time.Duration(0))

// envBinder 按 env tag 把 PREFIX_SECTION_FIELD 形式的变量写入配置
type envBinder struct {
	lookup lookupFunc
	errs   []error
}

// bindEnv 遍历 cfg，收集所有解析失败的变量后一次返回
func bindEnv(cfg *Config, prefix string, lookup lookupFunc) error {
	b := &envBinder{lookup: lookup}
	b.walk(reflect.ValueOf(cfg).Elem(), prefix)
	return errors.Join(b.errs...)
}

func (b *envBinder) walk(v reflect.Value, prefix string) {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("env")
		if tag == "" || tag == "-" || !sf.IsExported() {
			continue
		}
		key := prefix + "_" + tag
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct {
			b.walk(fv, key)
			continue
		}

		raw, ok := b.lookup(key)
		if !ok || raw == "" {
			continue
		}
		if err := decode(fv, raw); err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		}
	}
}

// decode 把字符串写入标量字段；字符串切片按逗号拆分
func decode(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(v)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fv.Type())
		}
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(fv.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p).Convert(fv.Type().Elem()))
			}
		}
		fv.Set(out)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
