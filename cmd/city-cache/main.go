// 城市缓存维护工具：对配置的缓存后端执行查看、导出、导入与清空
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"citymap/internal/citycache"
	"citymap/internal/config"
	"citymap/internal/logger"
	"citymap/internal/viewer"
)

func usage() {
	fmt.Println("usage: city-cache [--env <file>] <command>")
	fmt.Println("commands:")
	fmt.Println("  list              按距离列出缓存城市")
	fmt.Println("  count             输出缓存城市数量")
	fmt.Println("  export            以 JSON 输出全部缓存记录")
	fmt.Println("  import <file>     从 JSON 文件合并写入（不清空已有记录）")
	fmt.Println("  clear             清空缓存")
}

func main() {
	var envFiles []string
	var args []string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFiles = append(envFiles, os.Args[i+1])
			i++
			continue
		}
		args = append(args, os.Args[i])
	}
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cache, err := citycache.Open(ctx, cfg)
	if err != nil {
		fmt.Println("cache error:", err)
		os.Exit(1)
	}
	defer cache.Close()

	if err := run(ctx, cache, args); err != nil {
		fmt.Println("error:", err)
		cache.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cache *citycache.Cache, args []string) error {
	switch strings.ToLower(args[0]) {
	case "list":
		recs := cache.LoadAll(ctx)
		list := viewer.NewListPanel()
		list.Update(recs)
		if msg := list.Message(); msg != "" {
			fmt.Println(msg)
			return nil
		}
		for _, row := range list.Rows() {
			fmt.Printf("%d\t%s\n", row.ObjectID, row.Text)
		}
		return nil
	case "count":
		fmt.Println(len(cache.LoadAll(ctx)))
		return nil
	case "export":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cache.LoadAll(ctx))
	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: import <file>")
		}
		b, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var recs []citycache.CityRecord
		if err := json.Unmarshal(b, &recs); err != nil {
			return fmt.Errorf("decode %s: %w", args[1], err)
		}
		if err := cache.SaveAll(ctx, recs, citycache.WithClearExisting(false)); err != nil {
			return err
		}
		fmt.Println("ok", len(recs))
		return nil
	case "clear":
		if err := cache.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	case "help":
		usage()
		return nil
	}
	usage()
	return fmt.Errorf("unknown command %q", args[0])
}
