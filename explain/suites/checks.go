// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	"fmt"
	"slices"

	"github.com/netdata/netdata/go/explainmanifest/explain/expect"
)

const nginxBin = "/usr/local/openresty/nginx/sbin/nginx"

// kongPatchFunctions are exported by the nginx binary when the Kong
// lua-kong-nginx-module patches are applied.
var kongPatchFunctions = []string{
	"ngx_http_lua_kong_ffi_set_grpc_authority",
	"ngx_http_lua_ffi_balancer_enable_keepalive",
	"ngx_http_lua_kong_ffi_set_dynamic_log_level",
	"ngx_http_lua_kong_ffi_get_dynamic_log_level",
	"ngx_http_lua_kong_ffi_get_static_tag",
	"ngx_stream_lua_kong_ffi_get_static_tag",
	"ngx_http_lua_kong_ffi_get_full_client_certificate_chain",
	"ngx_http_lua_kong_ffi_disable_session_reuse",
	"ngx_http_lua_kong_ffi_set_upstream_client_cert_and_key",
	"ngx_http_lua_kong_ffi_set_upstream_ssl_trusted_store",
	"ngx_http_lua_kong_ffi_set_upstream_ssl_verify",
	"ngx_http_lua_kong_ffi_set_upstream_ssl_verify_depth",
	"ngx_stream_lua_kong_ffi_get_full_client_certificate_chain",
	"ngx_stream_lua_kong_ffi_disable_session_reuse",
	"ngx_stream_lua_kong_ffi_set_upstream_client_cert_and_key",
	"ngx_stream_lua_kong_ffi_set_upstream_ssl_trusted_store",
	"ngx_stream_lua_kong_ffi_set_upstream_ssl_verify",
	"ngx_stream_lua_kong_ffi_set_upstream_ssl_verify_depth",
	"ngx_http_lua_kong_ffi_var_get_by_index",
	"ngx_http_lua_kong_ffi_var_set_by_index",
	"ngx_http_lua_kong_ffi_var_load_indexes",
}

// FuncRegistry maps the suite names used in target tables to functions.
type FuncRegistry map[string]expect.SuiteFunc

// DefaultFuncs holds the built-in check functions.
var DefaultFuncs = FuncRegistry{}

func init() {
	DefaultFuncs.Register("common", Common)
	DefaultFuncs.Register("libc_libcpp", LibcLibcpp)
	DefaultFuncs.Register("arm64", Arm64)
}

// Register adds fn under name. It panics on a duplicate name.
func (r FuncRegistry) Register(name string, fn expect.SuiteFunc) {
	if _, ok := r[name]; ok {
		panic(fmt.Sprintf("%s is already in registry", name))
	}
	r[name] = fn
}

// Names returns the registered names in lexical order.
func (r FuncRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Common checks every Kong package. Params: fips (bool).
func Common(e *expect.Engine, p expect.Params) error {
	fips, err := p.Bool("fips")
	if err != nil {
		return err
	}

	e.Expect("/usr/local/kong/include/google/protobuf/**.proto", "includes Google protobuf headers").Exists()
	e.Expect("/usr/local/kong/include/kong/**/*.proto", "includes Kong protobuf headers").Exists()
	e.Expect("/etc/kong/kong.logrotate", "includes logrotate config").Exists()

	e.Expect(nginxBin, "nginx rpath should contain kong lib").
		Attr("rpath").Equals("/usr/local/openresty/luajit/lib:/usr/local/kong/lib")

	e.Expect(nginxBin, "nginx binary should contain dwarf info for dynatrace").
		Attr("has_dwarf_info").Equals(true).
		Attr("has_ngx_http_request_t_DW").Equals(true)

	e.Expect(nginxBin, "nginx binary should link pcre statically").
		Attr("exported_symbols").Contain("pcre_free").
		Attr("needed_libraries").DoNot().ContainMatch(`libpcre.so.+`)

	e.Expect(nginxBin, "nginx should not be compiled with debug flag").
		Attr("nginx_compile_flags").DoNot().Match(`with\-debug`)

	c := e.Expect(nginxBin, "nginx should include Kong's patches").Attr("functions")
	for _, fn := range kongPatchFunctions {
		c.Contain(fn)
	}

	if fips {
		return nil
	}

	e.Expect(nginxBin, "nginx compiled with OpenSSL 3.1.x").
		Attr("nginx_compiled_openssl").Matches(`OpenSSL 3.1.\d`).
		Attr("version_requirement").Key("libssl.so.3").LessThan("OPENSSL_3.2.0").
		Attr("version_requirement").Key("libcrypto.so.3").LessThan("OPENSSL_3.2.0")

	e.Expect("**/*.so", "dynamic libraries are compiled with OpenSSL 3.1.x").
		Attr("version_requirement").Key("libssl.so.3").LessThan("OPENSSL_3.2.0").
		Attr("version_requirement").Key("libcrypto.so.3").LessThan("OPENSSL_3.2.0")

	return nil
}

// LibcLibcpp caps the glibc, libstdc++ and C++ ABI versions the shared
// libraries may require. Params: max_libc, max_libcxx, max_cxxabi
// (strings, an empty or unset value skips the check).
func LibcLibcpp(e *expect.Engine, p expect.Params) error {
	maxLibc, err := p.String("max_libc")
	if err != nil {
		return err
	}
	maxLibcxx, err := p.String("max_libcxx")
	if err != nil {
		return err
	}
	maxCxxabi, err := p.String("max_cxxabi")
	if err != nil {
		return err
	}

	if maxLibc != "" {
		c := e.Expect("**/*.so", "libc version is less than "+maxLibc)
		for _, lib := range []string{"libc.so.6", "libdl.so.2", "libpthread.so.0", "librt.so.1"} {
			c.Attr("version_requirement").Key(lib).IsNot().GreaterThan("GLIBC_" + maxLibc)
		}
	}

	if maxLibcxx != "" {
		e.Expect("**/*.so", "glibcxx version is less than "+maxLibcxx).
			Attr("version_requirement").Key("libstdc++.so.6").IsNot().GreaterThan("GLIBCXX_" + maxLibcxx)
	}

	if maxCxxabi != "" {
		e.Expect("**/*.so", "cxxabi version is less than "+maxCxxabi).
			Attr("version_requirement").Key("libstdc++.so.6").IsNot().GreaterThan("CXXABI_" + maxCxxabi)
	}

	return nil
}

// Arm64 checks the shared libraries and nginx are built for aarch64.
func Arm64(e *expect.Engine, _ expect.Params) error {
	e.Expect("**/*/**.so*", "Dynamic libraries are arm64 arch").
		Attr("arch").Equals("AARCH64")

	e.Expect(nginxBin, "Nginx is arm64 arch").
		Attr("arch").Equals("AARCH64")

	return nil
}
